package sqlite3

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

func (s *SQLite) CreateInitSession(ctx context.Context, sess core.ConnectionInitSession) (*core.ConnectionInitSession, error) {
	if sess.ID == "" {
		sess.ID = ulid.Make().String()
	}

	payload, err := json.Marshal(sess.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal init session payload: %w", err)
	}
	overrides, err := json.Marshal(sess.Overrides)
	if err != nil {
		return nil, fmt.Errorf("marshal init session overrides: %w", err)
	}

	query, _, err := s.goqu.Insert(s.tableInitSessions).Rows(goqu.Record{
		"id":                  sess.ID,
		"organization_id":     sess.OrganizationID,
		"short_name":          sess.ShortName,
		"state":               sess.State,
		"payload":             payload,
		"overrides":           overrides,
		"status":              string(sess.Status),
		"redirect_session_id": sess.RedirectSessionID,
		"expires_at":          sqlTimeValue(sess.ExpiresAt),
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert init_session query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create init_session: %w", err)
	}

	return &sess, nil
}

func (s *SQLite) GetInitSession(ctx context.Context, id string) (*core.ConnectionInitSession, error) {
	query, _, err := s.goqu.From(s.tableInitSessions).
		Select("id", "organization_id", "short_name", "state", "payload", "overrides", "status", "redirect_session_id", "expires_at", "created_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get init_session query: %w", err)
	}

	var sess core.ConnectionInitSession
	var status string
	var payload, overrides []byte
	var expiresAt, createdAt sqlTime
	err = s.db.QueryRowContext(ctx, query).Scan(
		&sess.ID, &sess.OrganizationID, &sess.ShortName, &sess.State, &payload, &overrides,
		&status, &sess.RedirectSessionID, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get init_session %s: %w", id, err)
	}
	sess.Status = core.InitSessionStatus(status)
	sess.ExpiresAt = expiresAt.Time()
	sess.CreatedAt = createdAt.Time()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &sess.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal init session payload: %w", err)
		}
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &sess.Overrides); err != nil {
			return nil, fmt.Errorf("unmarshal init session overrides: %w", err)
		}
	}

	return &sess, nil
}

func (s *SQLite) UpdateInitSessionStatus(ctx context.Context, id string, status core.InitSessionStatus, redirectSessionID *string) error {
	query, _, err := s.goqu.Update(s.tableInitSessions).
		Set(goqu.Record{"status": string(status), "redirect_session_id": redirectSessionID}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update init_session query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("update init_session %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) CreateRedirectSession(ctx context.Context, id string, rs core.RedirectSession) error {
	query, _, err := s.goqu.Insert(s.tableRedirectSess).Rows(goqu.Record{
		"id":         id,
		"code":       rs.Code,
		"url":        rs.URL,
		"expires_at": sqlTimeValue(rs.ExpiresAt),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert redirect_session query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create redirect_session: %w", err)
	}
	return nil
}

func (s *SQLite) GetRedirectSession(ctx context.Context, id string) (*core.RedirectSession, error) {
	query, _, err := s.goqu.From(s.tableRedirectSess).
		Select("code", "url", "expires_at").
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get redirect_session query: %w", err)
	}

	var rs core.RedirectSession
	var expiresAt sqlTime
	err = s.db.QueryRowContext(ctx, query).Scan(&rs.Code, &rs.URL, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redirect_session %s: %w", id, err)
	}
	rs.ExpiresAt = expiresAt.Time()
	return &rs, nil
}

func (s *SQLite) DeleteRedirectSession(ctx context.Context, id string) error {
	query, _, err := s.goqu.Delete(s.tableRedirectSess).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete redirect_session query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete redirect_session %s: %w", id, err)
	}
	return nil
}
