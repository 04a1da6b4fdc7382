// Package notion implements the Notion source driver: pages and databases
// via the Search API, with a continuous cursor over last_edited_time so
// incremental syncs emit only what changed upstream. Every page is still
// listed on each run; the cursor filters them client-side.
package notion

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
	shortName = "notion"
	baseURL   = "https://api.notion.com/v1"
	pageSize  = 100
)

func init() {
	registry.Register(registry.Entry{
		ShortName:  shortName,
		Name:       "Notion",
		AuthMethod: core.AuthOAuthBYOC,
		OAuthType:  core.OAuthTypeWithRefresh,
		ConfigSchema: registry.Schema{
			{Name: "proxy", Type: registry.FieldString, Description: "outbound HTTP proxy URL"},
		},
		SupportsContinuousCursor: true,
		New:                      New,
	})
}

type Driver struct {
	client *httpx.Client
}

// New builds a Notion driver bound to one source connection's token.
func New(creds, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	c, err := httpx.New(httpx.Config{BaseURL: baseURL, Proxy: stringField(config, "proxy")}, tok)
	if err != nil {
		return nil, fmt.Errorf("notion: build http client: %w", err)
	}
	return &Driver{client: c}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out searchResponse
	body := searchRequest{PageSize: 1}
	if err := d.client.JSON(ctx, "POST", "/search", body, &out); err != nil {
		return fmt.Errorf("notion: validate: %w", err)
	}
	return nil
}

// cursor holds the last seen last_edited_time boundary as RFC3339.
type cursor struct {
	Since string `json:"since"`
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	var since string
	if len(cur) > 0 {
		var c cursor
		if err := json.Unmarshal(cur, &c); err == nil {
			since = c.Since
		}
	}

	go func() {
		defer close(out)
		defer close(errc)

		var startCursor string
		var maxSeen time.Time

		for {
			req := searchRequest{
				PageSize: pageSize,
				Sort:     &searchSort{Direction: "ascending", Timestamp: "last_edited_time"},
			}
			if startCursor != "" {
				req.StartCursor = startCursor
			}

			var resp searchResponse
			if err := d.client.JSON(ctx, "POST", "/search", req, &resp); err != nil {
				errc <- fmt.Errorf("notion: search: %w", err)
				return
			}

			var entities []core.Entity
			for _, r := range resp.Results {
				edited, err := time.Parse(time.RFC3339, r.LastEditedTime)
				if err == nil {
					if since != "" && !edited.After(parseOrZero(since)) {
						continue
					}
					if edited.After(maxSeen) {
						maxSeen = edited
					}
				}
				entities = append(entities, toEntity(r))
			}

			done := !resp.HasMore
			var cursorBytes []byte
			if done && !maxSeen.IsZero() {
				cursorBytes, _ = json.Marshal(cursor{Since: maxSeen.UTC().Format(time.RFC3339)})
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
			startCursor = resp.NextCursor
		}
	}()

	return out, errc
}

func toEntity(r searchResult) core.Entity {
	name := plainTextFromTitle(r.Properties)
	var created, updated *time.Time
	if t, err := time.Parse(time.RFC3339, r.CreatedTime); err == nil {
		created = &t
	}
	if t, err := time.Parse(time.RFC3339, r.LastEditedTime); err == nil {
		updated = &t
	}

	var breadcrumbs []string
	if r.Parent.PageID != "" {
		breadcrumbs = []string{r.Parent.PageID}
	} else if r.Parent.DatabaseID != "" {
		breadcrumbs = []string{r.Parent.DatabaseID}
	}

	return core.Entity{
		EntityID:    r.ID,
		Breadcrumbs: breadcrumbs,
		Name:        name,
		CreatedAt:   created,
		UpdatedAt:   updated,
		Fields: map[string]any{
			"object":      r.Object,
			"url":         r.URL,
			"archived":    r.Archived,
			"in_trash":    r.InTrash,
			"parent_type": r.Parent.Type,
		},
	}
}

func plainTextFromTitle(props map[string]notionProperty) string {
	for _, p := range props {
		if p.Type != "title" {
			continue
		}
		var s string
		for _, rt := range p.Title {
			s += rt.PlainText
		}
		return s
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func parseOrZero(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
