// Package clickup implements the ClickUp source driver: spaces -> lists ->
// tasks, fetching each list's tasks concurrently with a bounded worker pool
// since ClickUp has no cross-list task listing endpoint.
package clickup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/sources/concurrency"
	"github.com/airweave-core/airweave-core/internal/sources/httpx"
)

const (
	shortName      = "clickup"
	baseURL        = "https://api.clickup.com/api/v2"
	maxConcurrency = 5
)

func init() {
	registry.Register(registry.Entry{
		ShortName:  shortName,
		Name:       "ClickUp",
		AuthMethod: core.AuthDirect,
		ConfigSchema: registry.Schema{
			{Name: "team_id", Type: registry.FieldString, Required: true},
		},
		CredentialSchema: registry.Schema{
			{Name: "api_token", Type: registry.FieldSecret, Required: true},
		},
		New: New,
	})
}

type Driver struct {
	client *httpx.Client
	teamID string
}

func New(creds, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	teamID, _ := config["team_id"].(string)
	if teamID == "" {
		return nil, fmt.Errorf("clickup: config.team_id is required")
	}
	apiToken, _ := creds["api_token"].(string)
	if apiToken == "" {
		return nil, fmt.Errorf("clickup: credentials.api_token is required")
	}

	c, err := httpx.New(httpx.Config{BaseURL: baseURL}, staticTokenGetter(apiToken))
	if err != nil {
		return nil, fmt.Errorf("clickup: build http client: %w", err)
	}
	return &Driver{client: c, teamID: teamID}, nil
}

// staticTokenGetter satisfies sources.TokenGetter for Direct-auth
// connections where the API token is a static value from credentials,
// never refreshed.
type staticTokenGetter string

func (s staticTokenGetter) Token(ctx context.Context) (string, error) { return string(s), nil }
func (s staticTokenGetter) RefreshOnUnauthorized(ctx context.Context) (string, error) {
	return string(s), nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out spacesResponse
	path := fmt.Sprintf("/team/%s/space?archived=false", d.teamID)
	if err := d.client.JSON(ctx, "GET", path, nil, &out); err != nil {
		return fmt.Errorf("clickup: validate: %w", err)
	}
	return nil
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		spaces, err := d.listSpaces(ctx)
		if err != nil {
			errc <- fmt.Errorf("clickup: list spaces: %w", err)
			return
		}

		type listRef struct {
			space clickupSpace
			list  clickupList
		}
		var lists []listRef
		for _, sp := range spaces {
			ls, err := d.listLists(ctx, sp.ID)
			if err != nil {
				errc <- fmt.Errorf("clickup: list lists for space %s: %w", sp.ID, err)
				return
			}
			for _, l := range ls {
				lists = append(lists, listRef{space: sp, list: l})
			}
		}

		var mu sync.Mutex
		err = concurrency.Run(ctx, maxConcurrency, lists, func(ctx context.Context, lr listRef) error {
			tasks, err := d.listTasks(ctx, lr.list.ID)
			if err != nil {
				return err
			}

			entities := make([]core.Entity, 0, len(tasks)+1)
			entities = append(entities, listToEntity(lr.space, lr.list))
			for _, t := range tasks {
				entities = append(entities, taskToEntity(lr.space, lr.list, t))
			}

			mu.Lock()
			defer mu.Unlock()
			select {
			case out <- sources.Batch{Entities: entities}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errc <- err
			return
		}

		out <- sources.Batch{Done: true}
	}()

	return out, errc
}

func (d *Driver) listSpaces(ctx context.Context) ([]clickupSpace, error) {
	var resp spacesResponse
	path := fmt.Sprintf("/team/%s/space?archived=false", d.teamID)
	if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Spaces, nil
}

func (d *Driver) listLists(ctx context.Context, spaceID string) ([]clickupList, error) {
	var resp listsResponse
	path := fmt.Sprintf("/space/%s/list?archived=false", spaceID)
	if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lists, nil
}

func (d *Driver) listTasks(ctx context.Context, listID string) ([]clickupTask, error) {
	var all []clickupTask
	page := 0
	for {
		var resp tasksResponse
		path := fmt.Sprintf("/list/%s/task?page=%d&include_closed=true", listID, page)
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Tasks...)
		if resp.LastPage || len(resp.Tasks) == 0 {
			break
		}
		page++
	}
	return all, nil
}

func listToEntity(sp clickupSpace, l clickupList) core.Entity {
	return core.Entity{
		EntityID:    l.ID,
		Breadcrumbs: []string{sp.ID},
		Name:        l.Name,
		Fields: map[string]any{
			"space_name": sp.Name,
		},
	}
}

func taskToEntity(sp clickupSpace, l clickupList, t clickupTask) core.Entity {
	var created, updated *time.Time
	if ms, err := parseEpochMillis(t.DateCreated); err == nil {
		tt := time.UnixMilli(ms).UTC()
		created = &tt
	}
	if ms, err := parseEpochMillis(t.DateUpdated); err == nil {
		tt := time.UnixMilli(ms).UTC()
		updated = &tt
	}

	return core.Entity{
		EntityID:              t.ID,
		Breadcrumbs:           []string{sp.ID, l.ID},
		Name:                  t.Name,
		CreatedAt:             created,
		UpdatedAt:             updated,
		TextualRepresentation: t.Description,
		Fields: map[string]any{
			"status": t.Status.Status,
			"url":    t.URL,
		},
	}
}
