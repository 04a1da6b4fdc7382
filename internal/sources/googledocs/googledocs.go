// Package googledocs implements the Google Docs source driver over the
// Drive v3 files.list API, restricted to Google Docs mime types, with a
// continuous cursor over modifiedTime. Every entity is a FileEntity: the
// File Downloader (C5) exports each doc to a concrete MIME type and fetches
// the bytes, rather than this driver reading document content itself.
package googledocs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/sources/httpx"
)

const (
	shortName   = "google_docs"
	baseURL     = "https://www.googleapis.com/drive/v3"
	docMimeType = "application/vnd.google-apps.document"
	exportMime  = "application/pdf"
	pageSize    = 100
)

func init() {
	registry.Register(registry.Entry{
		ShortName:                shortName,
		Name:                     "Google Docs",
		AuthMethod:               core.AuthOAuthToken,
		OAuthType:                core.OAuthTypeWithRefresh,
		SupportsContinuousCursor: true,
		New:                      New,
	})
}

type Driver struct {
	client *httpx.Client
}

func New(creds, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	c, err := httpx.New(httpx.Config{BaseURL: baseURL}, tok)
	if err != nil {
		return nil, fmt.Errorf("google_docs: build http client: %w", err)
	}
	return &Driver{client: c}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out filesListResponse
	if err := d.client.JSON(ctx, "GET", listPath("", 1, ""), nil, &out); err != nil {
		return fmt.Errorf("google_docs: validate: %w", err)
	}
	return nil
}

type modifiedCursor struct {
	Since string `json:"since"`
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	var c modifiedCursor
	if len(cur) > 0 {
		_ = json.Unmarshal(cur, &c)
	}

	go func() {
		defer close(out)
		defer close(errc)

		var maxSeen time.Time
		if c.Since != "" {
			if t, err := time.Parse(time.RFC3339, c.Since); err == nil {
				maxSeen = t
			}
		}

		pageToken := ""
		for {
			var resp filesListResponse
			if err := d.client.JSON(ctx, "GET", listPath(c.Since, pageSize, pageToken), nil, &resp); err != nil {
				errc <- fmt.Errorf("google_docs: files.list: %w", err)
				return
			}

			entities := make([]core.Entity, 0, len(resp.Files))
			for _, f := range resp.Files {
				entities = append(entities, fileToEntity(f))
				if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil && t.After(maxSeen) {
					maxSeen = t
				}
			}

			done := resp.NextPageToken == ""
			var cursorBytes []byte
			if done && !maxSeen.IsZero() {
				cursorBytes, _ = json.Marshal(modifiedCursor{Since: maxSeen.UTC().Format(time.RFC3339)})
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
			pageToken = resp.NextPageToken
		}
	}()

	return out, errc
}

func listPath(since string, pageSize int, pageToken string) string {
	q := fmt.Sprintf("mimeType='%s' and trashed=false", docMimeType)
	if since != "" {
		q += fmt.Sprintf(" and modifiedTime > '%s'", since)
	}
	path := fmt.Sprintf("/files?q=%s&pageSize=%d&fields=nextPageToken,files(id,name,modifiedTime,createdTime,parents,webViewLink,size)",
		url.QueryEscape(q), pageSize)
	if pageToken != "" {
		path += "&pageToken=" + url.QueryEscape(pageToken)
	}
	return path
}

func fileToEntity(f driveFile) core.Entity {
	var created, updated *time.Time
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		created = &t
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		updated = &t
	}

	return core.Entity{
		EntityID:    f.ID,
		Breadcrumbs: f.Parents,
		Name:        f.Name,
		CreatedAt:   created,
		UpdatedAt:   updated,
		File: &core.FileFields{
			URL:      fmt.Sprintf("%s/files/%s/export?mimeType=%s", baseURL, f.ID, url.QueryEscape(exportMime)),
			FileType: "pdf",
			MimeType: exportMime,
			Filename: f.Name + ".pdf",
		},
	}
}
