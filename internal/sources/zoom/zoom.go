// Package zoom implements the Zoom source driver: cloud recordings as
// FileEntity, paged month-by-month (Zoom's recordings API only accepts a
// bounded from/to window). Zoom's recordings endpoint rate-limits
// aggressively; pagination deliberately stays sequential rather than
// fanning out so internal/sources/httpx's 429 handling applies uniformly.
package zoom

import (
	"context"
	"fmt"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/sources/httpx"
)

const (
	shortName  = "zoom"
	baseURL    = "https://api.zoom.us/v2"
	windowDays = 30
)

func init() {
	registry.Register(registry.Entry{
		ShortName:  shortName,
		Name:       "Zoom",
		AuthMethod: core.AuthOAuthBrowser,
		OAuthType:  core.OAuthTypeWithRefresh,
		New:        New,
	})
}

type Driver struct {
	client *httpx.Client
}

func New(creds, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	c, err := httpx.New(httpx.Config{BaseURL: baseURL}, tok)
	if err != nil {
		return nil, fmt.Errorf("zoom: build http client: %w", err)
	}
	return &Driver{client: c}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out recordingsResponse
	if err := d.client.JSON(ctx, "GET", "/users/me/recordings?page_size=1", nil, &out); err != nil {
		return fmt.Errorf("zoom: validate: %w", err)
	}
	return nil
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		now := time.Now().UTC()
		from := string(cur)
		if from == "" {
			from = now.AddDate(-1, 0, 0).Format("2006-01-02")
		}

		for {
			to := earlier(from, windowDays, now)

			token := ""
			for {
				path := fmt.Sprintf("/users/me/recordings?from=%s&to=%s&page_size=50", from, to)
				if token != "" {
					path += "&next_page_token=" + token
				}

				var resp recordingsResponse
				if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
					errc <- fmt.Errorf("zoom: list recordings: %w", err)
					return
				}

				entities := make([]core.Entity, 0, len(resp.Meetings))
				for _, m := range resp.Meetings {
					for _, f := range m.RecordingFiles {
						entities = append(entities, recordingToEntity(m, f))
					}
				}

				done := resp.NextPageToken == "" && to == now.Format("2006-01-02")
				select {
				case out <- sources.Batch{Entities: entities, Cursor: []byte(to), Done: done}:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}

				if resp.NextPageToken == "" {
					break
				}
				token = resp.NextPageToken
			}

			if to == now.Format("2006-01-02") {
				return
			}
			from = to
		}
	}()

	return out, errc
}

func earlier(from string, days int, now time.Time) string {
	t, err := time.Parse("2006-01-02", from)
	if err != nil {
		return now.Format("2006-01-02")
	}
	to := t.AddDate(0, 0, days)
	if to.After(now) {
		return now.Format("2006-01-02")
	}
	return to.Format("2006-01-02")
}

func recordingToEntity(m zoomMeeting, f zoomRecordingFile) core.Entity {
	var created *time.Time
	if t, err := time.Parse(time.RFC3339, f.RecordingStart); err == nil {
		created = &t
	}

	return core.Entity{
		EntityID:    f.ID,
		Breadcrumbs: []string{fmt.Sprintf("%d", m.ID)},
		Name:        fmt.Sprintf("%s (%s)", m.Topic, f.RecordingType),
		CreatedAt:   created,
		UpdatedAt:   created,
		File: &core.FileFields{
			URL:      f.DownloadURL,
			Size:     f.FileSize,
			FileType: f.FileType,
			Filename: fmt.Sprintf("%s-%s.%s", m.Topic, f.RecordingType, f.FileType),
		},
	}
}
