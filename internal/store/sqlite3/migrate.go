package sqlite3

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/muz"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*
var migrationFS embed.FS

// MigrateConfig configures one migration run.
type MigrateConfig struct {
	Datasource string
	Table      string
	Values     map[string]string
}

// MigrateDB applies pending migrations embedded under migrations/.
func MigrateDB(ctx context.Context, cfg MigrateConfig) error {
	db, err := sql.Open("sqlite", cfg.Datasource)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	m := muz.Migrate{
		Path:      "migrations",
		FS:        migrationFS,
		Extension: ".sql",
		Values:    cfg.Values,
	}

	driver := muz.NewSQLiteDriver(db, cfg.Table, slog.Default())

	if err := m.Migrate(ctx, driver); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
