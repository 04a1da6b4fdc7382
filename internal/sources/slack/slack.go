// Package slack implements the Slack source driver: channel history as
// entities, plus a federated Search capability hitting Slack's own search.
// Channel backfills fan out across channels with a bounded worker pool
// since Slack's API is paginated per-channel, not globally.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/sources/concurrency"
	"github.com/airweave-core/airweave-core/internal/sources/httpx"
)

const (
	shortName        = "slack"
	baseURL          = "https://slack.com/api"
	channelPageLimit = 200
	maxConcurrency   = 5
)

func init() {
	registry.Register(registry.Entry{
		ShortName:               shortName,
		Name:                    "Slack",
		AuthMethod:              core.AuthOAuthBrowser,
		OAuthType:               core.OAuthTypeWithRefresh,
		SupportsFederatedSearch: true,
		New:                     New,
	})
}

type Driver struct {
	client *httpx.Client
}

func New(creds, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
	c, err := httpx.New(httpx.Config{BaseURL: baseURL}, tok)
	if err != nil {
		return nil, fmt.Errorf("slack: build http client: %w", err)
	}
	return &Driver{client: c}, nil
}

func (d *Driver) Validate(ctx context.Context) error {
	var out authTestResponse
	if err := d.client.JSON(ctx, "GET", "/auth.test", nil, &out); err != nil {
		return fmt.Errorf("slack: validate: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("slack: auth.test failed: %s", out.Error)
	}
	return nil
}

// Search implements sources.FederatedSearcher.
func (d *Driver) Search(ctx context.Context, query string, limit int) ([]core.Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	var out searchMessagesResponse
	path := fmt.Sprintf("/search.messages?query=%s&count=%d", urlEscape(query), limit)
	if err := d.client.JSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("slack: search.messages: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("slack: search.messages failed: %s", out.Error)
	}

	entities := make([]core.Entity, 0, len(out.Messages.Matches))
	for _, m := range out.Messages.Matches {
		entities = append(entities, messageToEntity(m))
	}
	return entities, nil
}

type channelCursor struct {
	Channels map[string]string `json:"channels"` // channel id -> last seen ts
}

func (d *Driver) GenerateEntities(ctx context.Context, cur []byte) (<-chan sources.Batch, <-chan error) {
	out := make(chan sources.Batch)
	errc := make(chan error, 1)

	var seen channelCursor
	if len(cur) > 0 {
		_ = json.Unmarshal(cur, &seen)
	}
	if seen.Channels == nil {
		seen.Channels = map[string]string{}
	}

	go func() {
		defer close(out)
		defer close(errc)

		channels, err := d.listChannels(ctx)
		if err != nil {
			errc <- fmt.Errorf("slack: list channels: %w", err)
			return
		}

		var mu sync.Mutex
		nextSeen := make(map[string]string, len(channels))

		err = concurrency.Run(ctx, maxConcurrency, channels, func(ctx context.Context, ch slackChannel) error {
			since := seen.Channels[ch.ID]
			entities, maxTS, err := d.fetchChannelHistory(ctx, ch, since)
			if err != nil {
				return err
			}

			mu.Lock()
			if maxTS != "" {
				nextSeen[ch.ID] = maxTS
			} else {
				nextSeen[ch.ID] = since
			}
			mu.Unlock()

			if len(entities) == 0 {
				return nil
			}
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

		cursorBytes, _ := json.Marshal(channelCursor{Channels: nextSeen})
		out <- sources.Batch{Cursor: cursorBytes, Done: true}
	}()

	return out, errc
}

func (d *Driver) listChannels(ctx context.Context) ([]slackChannel, error) {
	var all []slackChannel
	cursor := ""
	for {
		path := fmt.Sprintf("/conversations.list?limit=%d&types=public_channel,private_channel", channelPageLimit)
		if cursor != "" {
			path += "&cursor=" + urlEscape(cursor)
		}
		var resp conversationsListResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, fmt.Errorf("slack: conversations.list failed: %s", resp.Error)
		}
		all = append(all, resp.Channels...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}
	return all, nil
}

func (d *Driver) fetchChannelHistory(ctx context.Context, ch slackChannel, since string) ([]core.Entity, string, error) {
	var entities []core.Entity
	var maxTS string
	cursor := ""

	for {
		path := fmt.Sprintf("/conversations.history?channel=%s&limit=200", ch.ID)
		if since != "" {
			path += "&oldest=" + urlEscape(since)
		}
		if cursor != "" {
			path += "&cursor=" + urlEscape(cursor)
		}

		var resp conversationsHistoryResponse
		if err := d.client.JSON(ctx, "GET", path, nil, &resp); err != nil {
			return nil, "", err
		}
		if !resp.OK {
			return nil, "", fmt.Errorf("slack: conversations.history failed: %s", resp.Error)
		}

		for _, m := range resp.Messages {
			m.Channel = ch.ID
			entities = append(entities, messageToEntity(m))
			if m.Ts > maxTS {
				maxTS = m.Ts
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	return entities, maxTS, nil
}

func messageToEntity(m slackMessage) core.Entity {
	var created *time.Time
	if sec, _, ok := parseSlackTS(m.Ts); ok {
		t := time.Unix(sec, 0).UTC()
		created = &t
	}

	return core.Entity{
		EntityID:              m.Channel + ":" + m.Ts,
		Breadcrumbs:           []string{m.Channel},
		Name:                  truncateText(m.Text, 80),
		CreatedAt:             created,
		UpdatedAt:             created,
		TextualRepresentation: m.Text,
		Fields: map[string]any{
			"user":    m.User,
			"channel": m.Channel,
			"ts":      m.Ts,
		},
	}
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func urlEscape(s string) string { return url.QueryEscape(s) }

// parseSlackTS splits a Slack timestamp ("1234567890.123456") into whole
// seconds and the fractional microsecond component.
func parseSlackTS(ts string) (sec int64, micro int64, ok bool) {
	parts := strings.SplitN(ts, ".", 2)
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return s, 0, true
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return s, 0, true
	}
	return s, m, true
}
