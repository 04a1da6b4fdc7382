// Package postgres is the primary persisted-state backend (spec §6),
// grounded on the teacher's internal/store/postgres package: a goqu query
// builder over database/sql + pgx/v5, ulid row ids, and embedded SQL
// migrations run through rakunlabs/muz before the pool is handed back.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	ConnMaxLifetime = 15 * time.Minute
	MaxIdleConns    = 5
	MaxOpenConns    = 10

	DefaultTablePrefix = "airweave_"
)

// Config configures a Postgres connection and its migration run.
type Config struct {
	Datasource      string
	Schema          string
	TablePrefix     string
	MigrationsTable string
}

// Postgres implements store.Store.
type Postgres struct {
	db   *sql.DB
	goqu *goqu.Database

	tableOrganizations  exp.IdentifierExpression
	tableCollections    exp.IdentifierExpression
	tableCredentials    exp.IdentifierExpression
	tableSourceConns    exp.IdentifierExpression
	tableInitSessions   exp.IdentifierExpression
	tableRedirectSess   exp.IdentifierExpression
	tableSyncs          exp.IdentifierExpression
	tableSyncJobs       exp.IdentifierExpression
	tableEntities       exp.IdentifierExpression
}

// New opens a connection, runs migrations, and returns a ready Postgres store.
func New(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.Datasource == "" {
		return nil, errors.New("postgres: datasource is required")
	}

	tablePrefix := DefaultTablePrefix
	if cfg.TablePrefix != "" {
		tablePrefix = cfg.TablePrefix
	}

	migrationsTable := cfg.MigrationsTable
	if migrationsTable == "" {
		migrationsTable = "migrations"
	}

	if err := MigrateDB(ctx, MigrateConfig{
		Datasource: cfg.Datasource,
		Schema:     cfg.Schema,
		Table:      tablePrefix + migrationsTable,
		Values:     map[string]string{"TABLE_PREFIX": tablePrefix},
	}); err != nil {
		return nil, fmt.Errorf("migrate store postgres: %w", err)
	}

	db, err := sql.Open("pgx", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if cfg.Schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", cfg.Schema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set search_path: %w", err)
		}
	}

	db.SetConnMaxLifetime(ConnMaxLifetime)
	db.SetMaxIdleConns(MaxIdleConns)
	db.SetMaxOpenConns(MaxOpenConns)

	slog.Info("connected to store postgres")

	dbGoqu := goqu.New("postgres", db)

	return &Postgres{
		db:                db,
		goqu:              dbGoqu,
		tableOrganizations: goqu.T(tablePrefix + "organizations"),
		tableCollections:   goqu.T(tablePrefix + "collections"),
		tableCredentials:   goqu.T(tablePrefix + "integration_credentials"),
		tableSourceConns:   goqu.T(tablePrefix + "source_connections"),
		tableInitSessions:  goqu.T(tablePrefix + "connection_init_sessions"),
		tableRedirectSess:  goqu.T(tablePrefix + "redirect_sessions"),
		tableSyncs:         goqu.T(tablePrefix + "syncs"),
		tableSyncJobs:      goqu.T(tablePrefix + "sync_jobs"),
		tableEntities:      goqu.T(tablePrefix + "sync_entities"),
	}, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			slog.Error("close store postgres connection", "error", err)
		}
	}
}
