// Package sqlite3 is the embedded-SQLite persisted-state backend, used for
// single-node or development deployments where running Postgres is
// unwarranted. Grounded on the teacher's internal/store/sqlite3 package:
// same goqu-over-database/sql shape as internal/store/postgres, against
// modernc.org/sqlite instead of pgx.
package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	_ "modernc.org/sqlite"
)

var DefaultTablePrefix = "airweave_"

// Config configures a SQLite connection and its migration run.
type Config struct {
	Datasource  string
	TablePrefix string
}

// SQLite implements store.Store against an embedded database/sql SQLite
// connection (modernc.org/sqlite, pure Go, no cgo).
type SQLite struct {
	db   *sql.DB
	goqu *goqu.Database

	tableOrganizations exp.IdentifierExpression
	tableCollections   exp.IdentifierExpression
	tableCredentials   exp.IdentifierExpression
	tableSourceConns   exp.IdentifierExpression
	tableInitSessions  exp.IdentifierExpression
	tableRedirectSess  exp.IdentifierExpression
	tableSyncs         exp.IdentifierExpression
	tableSyncJobs      exp.IdentifierExpression
	tableEntities      exp.IdentifierExpression
}

// New opens a connection, runs migrations, and returns a ready SQLite store.
func New(ctx context.Context, cfg Config) (*SQLite, error) {
	if cfg.Datasource == "" {
		return nil, errors.New("sqlite3: datasource is required")
	}

	tablePrefix := DefaultTablePrefix
	if cfg.TablePrefix != "" {
		tablePrefix = cfg.TablePrefix
	}

	if err := MigrateDB(ctx, MigrateConfig{
		Datasource: cfg.Datasource,
		Table:      tablePrefix + "migrations",
		Values:     map[string]string{"TABLE_PREFIX": tablePrefix},
	}); err != nil {
		return nil, fmt.Errorf("migrate store sqlite3: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under the write concurrency the
	// Sync Runner (C9) generates across organizations sharing one file.
	db.SetMaxOpenConns(1)

	slog.Info("connected to store sqlite3", "datasource", cfg.Datasource)

	dbGoqu := goqu.New("sqlite3", db)

	return &SQLite{
		db:                 db,
		goqu:               dbGoqu,
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

// Close closes the underlying connection.
func (s *SQLite) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("close store sqlite3 connection", "error", err)
		}
	}
}
