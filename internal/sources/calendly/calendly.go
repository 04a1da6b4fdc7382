// Package calendly implements the Calendly source driver: the current
// user's event types and their scheduled events. Calendly has no
// incremental sync primitive suited to this connector, so every run is a
// full re-list.
package calendly

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
	shortName = "calendly"
	baseURL   = "https://api.calendly.com"
)

func init() {
	registry.Register(registry.Entry{
		ShortName:  shortName,
		Name:       "Calendly",
		AuthMethod: core.AuthOAuthToken,
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
		return nil, fmt.Errorf("calendly: build http client: %w", err)
	}
	return &Driver{client: c}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out currentUserResponse
	if err := d.client.JSON(ctx, "GET", "/users/me", nil, &out); err != nil {
		return fmt.Errorf("calendly: validate: %w", err)
	}
	return nil
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		var me currentUserResponse
		if err := d.client.JSON(ctx, "GET", "/users/me", nil, &me); err != nil {
			errc <- fmt.Errorf("calendly: current user: %w", err)
			return
		}
		userURI := me.Resource.URI

		eventTypes, err := d.listEventTypes(ctx, userURI)
		if err != nil {
			errc <- fmt.Errorf("calendly: list event types: %w", err)
			return
		}

		for _, et := range eventTypes {
			events, err := d.listScheduledEvents(ctx, userURI, et.URI)
			if err != nil {
				errc <- fmt.Errorf("calendly: list scheduled events for %s: %w", et.URI, err)
				return
			}

			entities := make([]core.Entity, 0, len(events)+1)
			entities = append(entities, eventTypeToEntity(et))
			for _, ev := range events {
				entities = append(entities, scheduledEventToEntity(et, ev))
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

func (d *Driver) listEventTypes(ctx context.Context, userURI string) ([]calendlyEventType, error) {
	var all []calendlyEventType
	pageToken := ""
	for {
		path := fmt.Sprintf("/event_types?user=%s&count=100", userURI)
		if pageToken != "" {
			path += "&page_token=" + pageToken
		}
		var resp eventTypesResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Collection...)
		if resp.Pagination.NextPageToken == "" {
			break
		}
		pageToken = resp.Pagination.NextPageToken
	}
	return all, nil
}

func (d *Driver) listScheduledEvents(ctx context.Context, userURI, eventTypeURI string) ([]calendlyScheduledEvent, error) {
	var all []calendlyScheduledEvent
	pageToken := ""
	for {
		path := fmt.Sprintf("/scheduled_events?user=%s&event_type=%s&count=100", userURI, eventTypeURI)
		if pageToken != "" {
			path += "&page_token=" + pageToken
		}
		var resp scheduledEventsResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Collection...)
		if resp.Pagination.NextPageToken == "" {
			break
		}
		pageToken = resp.Pagination.NextPageToken
	}
	return all, nil
}

func eventTypeToEntity(et calendlyEventType) core.Entity {
	var created, updated *time.Time
	if t, err := time.Parse(time.RFC3339, et.CreatedAt); err == nil {
		created = &t
	}
	if t, err := time.Parse(time.RFC3339, et.UpdatedAt); err == nil {
		updated = &t
	}

	return core.Entity{
		EntityID:    et.URI,
		Name:        et.Name,
		CreatedAt:   created,
		UpdatedAt:   updated,
		Fields: map[string]any{
			"duration_minutes": et.Duration,
			"scheduling_url":   et.SchedulingURL,
			"active":           et.Active,
		},
	}
}

func scheduledEventToEntity(et calendlyEventType, ev calendlyScheduledEvent) core.Entity {
	var created, updated, startTime *time.Time
	if t, err := time.Parse(time.RFC3339, ev.CreatedAt); err == nil {
		created = &t
	}
	if t, err := time.Parse(time.RFC3339, ev.UpdatedAt); err == nil {
		updated = &t
	}
	if t, err := time.Parse(time.RFC3339, ev.StartTime); err == nil {
		startTime = &t
	}

	return core.Entity{
		EntityID:    ev.URI,
		Breadcrumbs: []string{et.URI},
		Name:        ev.Name,
		CreatedAt:   created,
		UpdatedAt:   updated,
		Fields: map[string]any{
			"status":     ev.Status,
			"start_time": startTime,
			"location":   ev.Location.Location,
		},
	}
}
