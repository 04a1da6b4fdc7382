// Package sharepoint implements the SharePoint Online source driver via
// Microsoft Graph's delta query (incremental drive-item sync) plus a
// membership generator that feeds the Access Control Ingest path (C13)
// with the site's group/user graph so ACL viewers resolve to Graph
// principals at search time.
package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/sources/httpx"
)

const (
	shortName = "sharepoint"
	baseURL   = "https://graph.microsoft.com/v1.0"
)

func init() {
	registry.Register(registry.Entry{
		ShortName:  shortName,
		Name:       "SharePoint",
		AuthMethod: core.AuthOAuthBrowser,
		OAuthType:  core.OAuthTypeWithRefresh,
		ConfigSchema: registry.Schema{
			{Name: "site_id", Type: registry.FieldString, Required: true, Description: "Graph site id"},
			{Name: "drive_id", Type: registry.FieldString, Required: true, Description: "Graph drive id"},
		},
		SupportsContinuousCursor: true,
		SupportsMemberships:      true,
		New:                      New,
	})
}

type Driver struct {
	client  *httpx.Client
	siteID  string
	driveID string
}

func New(creds, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	siteID, _ := config["site_id"].(string)
	driveID, _ := config["drive_id"].(string)
	if siteID == "" || driveID == "" {
		return nil, fmt.Errorf("sharepoint: config.site_id and config.drive_id are required")
	}

	c, err := httpx.New(httpx.Config{BaseURL: baseURL}, tok)
	if err != nil {
		return nil, fmt.Errorf("sharepoint: build http client: %w", err)
	}
	return &Driver{client: c, siteID: siteID, driveID: driveID}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out driveInfo
	path := fmt.Sprintf("/sites/%s/drives/%s", d.siteID, d.driveID)
	if err := d.client.JSON(ctx, "GET", path, nil, &out); err != nil {
		return fmt.Errorf("sharepoint: validate: %w", err)
	}
	return nil
}

type deltaCursor struct {
	DeltaLink string `json:"delta_link"`
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	var c deltaCursor
	if len(cur) > 0 {
		_ = json.Unmarshal(cur, &c)
	}

	go func() {
		defer close(out)
		defer close(errc)

		path := c.DeltaLink
		if path == "" {
			path = fmt.Sprintf("/sites/%s/drives/%s/root/delta", d.siteID, d.driveID)
		}

		for {
			var resp deltaResponse
			if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
				errc <- fmt.Errorf("sharepoint: delta query: %w", err)
				return
			}

			entities := make([]core.Entity, 0, len(resp.Value))
			for _, item := range resp.Value {
				if item.Deleted != nil {
					continue
				}
				e := itemToEntity(item)
				if viewers, err := d.itemViewers(ctx, item.ID); err == nil && len(viewers) > 0 {
					e.Access = &core.AccessControl{Viewers: viewers}
				}
				entities = append(entities, e)
			}

			done := resp.NextLink == ""
			var cursorBytes []byte
			if done {
				cursorBytes, _ = json.Marshal(deltaCursor{DeltaLink: resp.DeltaLink})
			}

			select {
			case out <- sources.Batch{Entities: entities, Cursor: cursorBytes, Done: done}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}

			if done {
				return
			}
			path = resp.NextLink
		}
	}()

	return out, errc
}

// GenerateMemberships implements sources.MembershipGenerator, walking the
// site's Graph group memberships so the Access Control Ingest path can
// resolve "group:sp:<id>"/"group:ad:<id>" viewers to their members.
func (d *Driver) GenerateMemberships(ctx context.Context) (<-chan core.Membership, <-chan error) {
	out := make(chan core.Membership)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		path := fmt.Sprintf("/sites/%s/permissions", d.siteID)
		var resp permissionsResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			errc <- fmt.Errorf("sharepoint: list permissions: %w", err)
			return
		}

		for _, perm := range resp.Value {
			for _, g := range perm.GrantedToIdentitiesV2 {
				m := core.Membership{
					GroupID:   perm.ID,
					GroupName: perm.Roles0(),
				}
				if g.User.ID != "" {
					m.MemberID = g.User.ID
					m.MemberType = "user"
				} else if g.Group.ID != "" {
					m.MemberID = g.Group.ID
					m.MemberType = "group"
				} else {
					continue
				}

				select {
				case out <- m:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errc
}

// itemViewers resolves a drive item's sharing permissions into namespaced
// viewer principals ("user:<id>", "group:sp:<id>") for core.AccessControl.
func (d *Driver) itemViewers(ctx context.Context, itemID string) ([]string, error) {
	path := fmt.Sprintf("/sites/%s/drives/%s/items/%s/permissions", d.siteID, d.driveID, itemID)
	var resp permissionsResponse
	if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}

	var viewers []string
	for _, perm := range resp.Value {
		for _, g := range perm.GrantedToIdentitiesV2 {
			if g.User.ID != "" {
				viewers = append(viewers, "user:"+g.User.ID)
			} else if g.Group.ID != "" {
				viewers = append(viewers, "group:sp:"+g.Group.ID)
			}
		}
	}
	return viewers, nil
}

func itemToEntity(item driveItem) core.Entity {
	var created, updated *time.Time
	if t, err := time.Parse(time.RFC3339, item.CreatedDateTime); err == nil {
		created = &t
	}
	if t, err := time.Parse(time.RFC3339, item.LastModifiedDateTime); err == nil {
		updated = &t
	}

	var breadcrumbs []string
	if item.ParentReference.ID != "" {
		breadcrumbs = []string{item.ParentReference.ID}
	}

	e := core.Entity{
		EntityID:    item.ID,
		Breadcrumbs: breadcrumbs,
		Name:        item.Name,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}

	if item.File != nil {
		e.File = &core.FileFields{
			URL:      item.WebURL,
			Size:     item.Size,
			MimeType: item.File.MimeType,
			Filename: item.Name,
		}
	}

	return e
}
