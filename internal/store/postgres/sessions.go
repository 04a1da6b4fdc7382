package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"

	"github.com/airweave-core/airweave-core/internal/core"
)

func (p *Postgres) CreateInitSession(ctx context.Context, s core.ConnectionInitSession) (*core.ConnectionInitSession, error) {
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}

	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal init session payload: %w", err)
	}
	overrides, err := json.Marshal(s.Overrides)
	if err != nil {
		return nil, fmt.Errorf("marshal init session overrides: %w", err)
	}

	query, _, err := p.goqu.Insert(p.tableInitSessions).Rows(goqu.Record{
		"id":                  s.ID,
		"organization_id":     s.OrganizationID,
		"short_name":          s.ShortName,
		"state":               s.State,
		"payload":             payload,
		"overrides":           overrides,
		"status":              string(s.Status),
		"redirect_session_id": s.RedirectSessionID,
		"expires_at":          s.ExpiresAt,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert init_session query: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create init_session: %w", err)
	}

	return &s, nil
}

func (p *Postgres) GetInitSession(ctx context.Context, id string) (*core.ConnectionInitSession, error) {
	query, _, err := p.goqu.From(p.tableInitSessions).
		Select("id", "organization_id", "short_name", "state", "payload", "overrides", "status", "redirect_session_id", "expires_at", "created_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get init_session query: %w", err)
	}

	var s core.ConnectionInitSession
	var status string
	var payload, overrides []byte
	err = p.db.QueryRowContext(ctx, query).Scan(
		&s.ID, &s.OrganizationID, &s.ShortName, &s.State, &payload, &overrides,
		&status, &s.RedirectSessionID, &s.ExpiresAt, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get init_session %s: %w", id, err)
	}
	s.Status = core.InitSessionStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &s.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal init session payload: %w", err)
		}
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &s.Overrides); err != nil {
			return nil, fmt.Errorf("unmarshal init session overrides: %w", err)
		}
	}

	return &s, nil
}

func (p *Postgres) UpdateInitSessionStatus(ctx context.Context, id string, status core.InitSessionStatus, redirectSessionID *string) error {
	query, _, err := p.goqu.Update(p.tableInitSessions).
		Set(goqu.Record{"status": string(status), "redirect_session_id": redirectSessionID}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update init_session query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("update init_session %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) CreateRedirectSession(ctx context.Context, id string, s core.RedirectSession) error {
	query, _, err := p.goqu.Insert(p.tableRedirectSess).Rows(goqu.Record{
		"id":         id,
		"code":       s.Code,
		"url":        s.URL,
		"expires_at": s.ExpiresAt,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert redirect_session query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create redirect_session: %w", err)
	}
	return nil
}

func (p *Postgres) GetRedirectSession(ctx context.Context, id string) (*core.RedirectSession, error) {
	query, _, err := p.goqu.From(p.tableRedirectSess).
		Select("code", "url", "expires_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get redirect_session query: %w", err)
	}

	var s core.RedirectSession
	err = p.db.QueryRowContext(ctx, query).Scan(&s.Code, &s.URL, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redirect_session %s: %w", id, err)
	}
	return &s, nil
}

func (p *Postgres) DeleteRedirectSession(ctx context.Context, id string) error {
	query, _, err := p.goqu.Delete(p.tableRedirectSess).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete redirect_session query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete redirect_session %s: %w", id, err)
	}
	return nil
}
