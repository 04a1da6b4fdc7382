package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/muz"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*
var migrationFS embed.FS

// MigrateConfig configures one migration run, separate from Config
// because migrations run against their own short-lived connection before
// the long-lived pool is opened (mirrors the teacher's own two-phase
// connect-then-migrate split in internal/store/postgres/postgres.go).
type MigrateConfig struct {
	Datasource string
	Schema     string
	Table      string
	Values     map[string]string
}

// MigrateDB applies pending migrations embedded under migrations/.
func MigrateDB(ctx context.Context, cfg MigrateConfig) error {
	db, err := sql.Open("pgx", cfg.Datasource)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migration connection: %w", err)
	}

	if cfg.Schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", cfg.Schema)); err != nil {
			return fmt.Errorf("set search_path for migrations: %w", err)
		}
	}

	m := muz.Migrate{
		Path:      "migrations",
		FS:        migrationFS,
		Extension: ".sql",
		Values:    cfg.Values,
	}

	driver := muz.NewPostgresDriver(db, cfg.Table, slog.Default())

	if err := m.Migrate(ctx, driver); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
