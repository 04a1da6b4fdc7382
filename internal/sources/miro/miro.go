// Package miro implements the Miro source driver: organization teams,
// their boards, and each board's items, carried through as a three-level
// breadcrumb chain (team -> board -> item).
package miro

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
	shortName = "miro"
	baseURL   = "https://api.miro.com/v2"
)

func init() {
	registry.Register(registry.Entry{
		ShortName:  shortName,
		Name:       "Miro",
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
		return nil, fmt.Errorf("miro: build http client: %w", err)
	}
	return &Driver{client: c}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out teamsResponse
	if err := d.client.JSON(ctx, "GET", "/orgs/teams?limit=1", nil, &out); err != nil {
		return fmt.Errorf("miro: validate: %w", err)
	}
	return nil
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		teams, err := d.listTeams(ctx)
		if err != nil {
			errc <- fmt.Errorf("miro: list teams: %w", err)
			return
		}

		for _, team := range teams {
			boards, err := d.listBoards(ctx, team.ID)
			if err != nil {
				errc <- fmt.Errorf("miro: list boards for team %s: %w", team.ID, err)
				return
			}

			for _, board := range boards {
				items, err := d.listItems(ctx, board.ID)
				if err != nil {
					errc <- fmt.Errorf("miro: list items for board %s: %w", board.ID, err)
					return
				}

				entities := make([]core.Entity, 0, len(items)+1)
				entities = append(entities, boardToEntity(team, board))
				for _, item := range items {
					entities = append(entities, itemToEntity(team, board, item))
				}

				select {
				case out <- sources.Batch{Entities: entities}:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
		}

		out <- sources.Batch{Done: true}
	}()

	return out, errc
}

func (d *Driver) listTeams(ctx context.Context) ([]miroTeam, error) {
	var all []miroTeam
	offset := 0
	for {
		var resp teamsResponse
		path := fmt.Sprintf("/orgs/teams?limit=50&offset=%d", offset)
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if len(resp.Data) < 50 {
			break
		}
		offset += len(resp.Data)
	}
	return all, nil
}

func (d *Driver) listBoards(ctx context.Context, teamID string) ([]miroBoard, error) {
	var all []miroBoard
	cursor := ""
	for {
		path := fmt.Sprintf("/boards?team_id=%s&limit=50", teamID)
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		var resp boardsResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}
	return all, nil
}

func (d *Driver) listItems(ctx context.Context, boardID string) ([]miroItem, error) {
	var all []miroItem
	cursor := ""
	for {
		path := fmt.Sprintf("/boards/%s/items?limit=50", boardID)
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		var resp itemsResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}
	return all, nil
}

func boardToEntity(team miroTeam, board miroBoard) core.Entity {
	var created, updated *time.Time
	if t, err := time.Parse(time.RFC3339, board.CreatedAt); err == nil {
		created = &t
	}
	if t, err := time.Parse(time.RFC3339, board.ModifiedAt); err == nil {
		updated = &t
	}

	return core.Entity{
		EntityID:    board.ID,
		Breadcrumbs: []string{team.ID},
		Name:        board.Name,
		CreatedAt:   created,
		UpdatedAt:   updated,
		Fields: map[string]any{
			"view_link": board.ViewLink,
			"team_name": team.Name,
		},
	}
}

func itemToEntity(team miroTeam, board miroBoard, item miroItem) core.Entity {
	var created, updated *time.Time
	if t, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		created = &t
	}
	if t, err := time.Parse(time.RFC3339, item.ModifiedAt); err == nil {
		updated = &t
	}

	return core.Entity{
		EntityID:              item.ID,
		Breadcrumbs:           []string{team.ID, board.ID},
		Name:                  item.Data.Title,
		CreatedAt:             created,
		UpdatedAt:             updated,
		TextualRepresentation: item.Data.Content,
		Fields: map[string]any{
			"type": item.Type,
		},
	}
}
