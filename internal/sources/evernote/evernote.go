// Package evernote implements the Evernote source driver: notebooks and
// their notes. Evernote's developer API never migrated off OAuth 1.0a, so
// RequiresLegacyOAuth1a tells the lifecycle layer to run the three-leg
// handshake (internal/lifecycle/oauth1.go) instead of OAuth2; this driver
// itself only ever sees a resolved bearer token through TokenGetter, same
// as every other OAuth-based driver.
package evernote

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
	shortName = "evernote"
	baseURL   = "https://api.evernote.com/v1"
)

func init() {
	registry.Register(registry.Entry{
		ShortName:             shortName,
		Name:                  "Evernote",
		AuthMethod:            core.AuthOAuthBYOC,
		OAuthType:             core.OAuthTypeRotatingRefresh,
		RequiresLegacyOAuth1a: true,
		New:                   New,
	})
}

type Driver struct {
	client *httpx.Client
}

func New(creds, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	c, err := httpx.New(httpx.Config{BaseURL: baseURL}, tok)
	if err != nil {
		return nil, fmt.Errorf("evernote: build http client: %w", err)
	}
	return &Driver{client: c}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out notebooksResponse
	if err := d.client.JSON(ctx, "GET", "/notebooks?limit=1", nil, &out); err != nil {
		return fmt.Errorf("evernote: validate: %w", err)
	}
	return nil
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		notebooks, err := d.listNotebooks(ctx)
		if err != nil {
			errc <- fmt.Errorf("evernote: list notebooks: %w", err)
			return
		}

		for _, nb := range notebooks {
			notes, err := d.listNotes(ctx, nb.GUID)
			if err != nil {
				errc <- fmt.Errorf("evernote: list notes for notebook %s: %w", nb.GUID, err)
				return
			}

			entities := make([]core.Entity, 0, len(notes)+1)
			entities = append(entities, notebookToEntity(nb))
			for _, n := range notes {
				entities = append(entities, noteToEntity(nb, n))
			}

			select {
			case out <- sources.Batch{Entities: entities}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}

		out <- sources.Batch{Done: true}
	}()

	return out, errc
}

func (d *Driver) listNotebooks(ctx context.Context) ([]evernoteNotebook, error) {
	var resp notebooksResponse
	if err := d.client.JSON(ctx, "GET", "/notebooks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notebooks, nil
}

func (d *Driver) listNotes(ctx context.Context, notebookGUID string) ([]evernoteNote, error) {
	var all []evernoteNote
	offset := 0
	for {
		path := fmt.Sprintf("/notebooks/%s/notes?offset=%d&maxNotes=100", notebookGUID, offset)
		var resp notesResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Notes...)
		if len(resp.Notes) < 100 {
			break
		}
		offset += len(resp.Notes)
	}
	return all, nil
}

func notebookToEntity(nb evernoteNotebook) core.Entity {
	var created, updated *time.Time
	if t := millisToTime(nb.ServiceCreated); !t.IsZero() {
		created = &t
	}
	if t := millisToTime(nb.ServiceUpdated); !t.IsZero() {
		updated = &t
	}

	return core.Entity{
		EntityID:  nb.GUID,
		Name:      nb.Name,
		CreatedAt: created,
		UpdatedAt: updated,
		Fields: map[string]any{
			"stack": nb.Stack,
		},
	}
}

func noteToEntity(nb evernoteNotebook, n evernoteNote) core.Entity {
	var created, updated *time.Time
	if t := millisToTime(n.Created); !t.IsZero() {
		created = &t
	}
	if t := millisToTime(n.Updated); !t.IsZero() {
		updated = &t
	}

	return core.Entity{
		EntityID:              n.GUID,
		Breadcrumbs:           []string{nb.GUID},
		Name:                  n.Title,
		CreatedAt:             created,
		UpdatedAt:             updated,
		TextualRepresentation: n.ContentPlainText,
	}
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
