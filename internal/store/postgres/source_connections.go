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

func (p *Postgres) CreateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	if sc.ID == "" {
		sc.ID = ulid.Make().String()
	}

	record, err := sourceConnectionRecord(sc)
	if err != nil {
		return nil, err
	}

	query, _, err := p.goqu.Insert(p.tableSourceConns).Rows(record).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert source_connection query: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create source_connection: %w", err)
	}

	return &sc, nil
}

func (p *Postgres) GetSourceConnection(ctx context.Context, id string) (*core.SourceConnection, error) {
	query, _, err := p.goqu.From(p.tableSourceConns).
		Select(sourceConnectionColumns...).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get source_connection query: %w", err)
	}

	sc, err := scanSourceConnection(p.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source_connection %s: %w", id, err)
	}
	return sc, nil
}

func (p *Postgres) ListSourceConnections(ctx context.Context, organizationID string) ([]core.SourceConnection, error) {
	query, _, err := p.goqu.From(p.tableSourceConns).
		Select(sourceConnectionColumns...).
		Where(goqu.I("organization_id").Eq(organizationID)).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list source_connections query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list source_connections: %w", err)
	}
	defer rows.Close()

	var out []core.SourceConnection
	for rows.Next() {
		sc, err := scanSourceConnectionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source_connection row: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSourceConnectionsByCollection(ctx context.Context, collectionReadableID string) ([]core.SourceConnection, error) {
	query, _, err := p.goqu.From(p.tableSourceConns).
		Select(sourceConnectionColumns...).
		Where(goqu.I("collection_readable_id").Eq(collectionReadableID)).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list source_connections by collection query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list source_connections for collection %s: %w", collectionReadableID, err)
	}
	defer rows.Close()

	var out []core.SourceConnection
	for rows.Next() {
		sc, err := scanSourceConnectionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source_connection row: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error) {
	record, err := sourceConnectionRecord(sc)
	if err != nil {
		return nil, err
	}
	delete(record, "id")
	record["updated_at"] = goqu.L("now()")

	query, _, err := p.goqu.Update(p.tableSourceConns).Set(record).
		Where(goqu.I("id").Eq(sc.ID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build update source_connection query: %w", err)
	}

	res, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("update source_connection %s: %w", sc.ID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("source_connection %s not found", sc.ID)
	}

	return p.GetSourceConnection(ctx, sc.ID)
}

func (p *Postgres) UpdateSourceConnectionCursor(ctx context.Context, id string, cursor []byte) error {
	query, _, err := p.goqu.Update(p.tableSourceConns).
		Set(goqu.Record{"cursor_data": cursor, "updated_at": goqu.L("now()")}).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update cursor query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("update source_connection %s cursor: %w", id, err)
	}
	return nil
}

func (p *Postgres) DeleteSourceConnection(ctx context.Context, id string) error {
	query, _, err := p.goqu.Delete(p.tableSourceConns).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete source_connection query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete source_connection %s: %w", id, err)
	}
	return nil
}

var sourceConnectionColumns = []any{
	"id", "organization_id", "collection_readable_id", "short_name", "name", "description",
	"auth_method", "is_authenticated", "state", "config", "credential_id", "sync_id",
	"cron_schedule", "cursor_data", "readable_auth_provider_id", "auth_provider_config",
	"connection_init_session_id", "created_at", "updated_at",
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSourceConnection(row scannable) (*core.SourceConnection, error) {
	return scanSourceConnectionRows(row)
}

func scanSourceConnectionRows(row scannable) (*core.SourceConnection, error) {
	var sc core.SourceConnection
	var authMethod, state string
	var config, authProviderConfig []byte

	err := row.Scan(
		&sc.ID, &sc.OrganizationID, &sc.CollectionReadableID, &sc.ShortName, &sc.Name, &sc.Description,
		&authMethod, &sc.IsAuthenticated, &state, &config, &sc.CredentialID, &sc.SyncID,
		&sc.CronSchedule, &sc.Cursor, &sc.ReadableAuthProviderID, &authProviderConfig,
		&sc.ConnectionInitSessionID, &sc.CreatedAt, &sc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sc.AuthMethod = core.AuthMethod(authMethod)
	sc.State = core.ConnectionState(state)
	if len(config) > 0 {
		if err := json.Unmarshal(config, &sc.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if len(authProviderConfig) > 0 {
		if err := json.Unmarshal(authProviderConfig, &sc.AuthProviderConfig); err != nil {
			return nil, fmt.Errorf("unmarshal auth_provider_config: %w", err)
		}
	}

	return &sc, nil
}

func sourceConnectionRecord(sc core.SourceConnection) (goqu.Record, error) {
	config, err := json.Marshal(sc.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	authProviderConfig, err := json.Marshal(sc.AuthProviderConfig)
	if err != nil {
		return nil, fmt.Errorf("marshal auth_provider_config: %w", err)
	}

	return goqu.Record{
		"id":                          sc.ID,
		"organization_id":             sc.OrganizationID,
		"collection_readable_id":      sc.CollectionReadableID,
		"short_name":                  sc.ShortName,
		"name":                        sc.Name,
		"description":                 sc.Description,
		"auth_method":                 string(sc.AuthMethod),
		"is_authenticated":            sc.IsAuthenticated,
		"state":                       string(sc.State),
		"config":                      config,
		"credential_id":               sc.CredentialID,
		"sync_id":                     sc.SyncID,
		"cron_schedule":               sc.CronSchedule,
		"cursor_data":                 sc.Cursor,
		"readable_auth_provider_id":   sc.ReadableAuthProviderID,
		"auth_provider_config":        authProviderConfig,
		"connection_init_session_id":  sc.ConnectionInitSessionID,
	}, nil
}
