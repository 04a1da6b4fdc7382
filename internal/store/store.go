// Package store defines the persisted-state contract (spec §6) and picks
// a concrete backend (Postgres or SQLite) from configuration, the way the
// teacher's internal/store package selects between its own backends.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/store/postgres"
	"github.com/airweave-core/airweave-core/internal/store/sqlite3"
)

// OrganizationStorer persists tenant organizations.
type OrganizationStorer interface {
	CreateOrganization(ctx context.Context, org core.Organization) (*core.Organization, error)
	GetOrganization(ctx context.Context, id string) (*core.Organization, error)
}

// CollectionStorer persists destination collections.
type CollectionStorer interface {
	CreateCollection(ctx context.Context, col core.Collection) (*core.Collection, error)
	GetCollection(ctx context.Context, readableID string) (*core.Collection, error)
	GetCollectionByID(ctx context.Context, id string) (*core.Collection, error)
}

// CredentialStorer persists encrypted integration credentials. It is the
// Storer interface internal/credential.Store depends on.
type CredentialStorer interface {
	CreateCredential(ctx context.Context, cred core.IntegrationCredential) (*core.IntegrationCredential, error)
	GetCredential(ctx context.Context, id string) (*core.IntegrationCredential, error)
	UpdateCredentialBlob(ctx context.Context, id, encryptedCredentials string) error
	DeleteCredential(ctx context.Context, id string) error
}

// SourceConnectionStorer persists source connections and their lifecycle
// state (spec §4.1, §4.2).
type SourceConnectionStorer interface {
	CreateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error)
	GetSourceConnection(ctx context.Context, id string) (*core.SourceConnection, error)
	ListSourceConnections(ctx context.Context, organizationID string) ([]core.SourceConnection, error)
	// ListSourceConnectionsByCollection returns every source connection
	// feeding one collection, the set the Search Pipeline (C10) classifies
	// into federated/vector-backed at build time.
	ListSourceConnectionsByCollection(ctx context.Context, collectionReadableID string) ([]core.SourceConnection, error)
	UpdateSourceConnection(ctx context.Context, sc core.SourceConnection) (*core.SourceConnection, error)
	UpdateSourceConnectionCursor(ctx context.Context, id string, cursor []byte) error
	DeleteSourceConnection(ctx context.Context, id string) error
}

// ConnectionInitSessionStorer persists the OAuth handshake's init session
// (spec §4.2).
type ConnectionInitSessionStorer interface {
	CreateInitSession(ctx context.Context, s core.ConnectionInitSession) (*core.ConnectionInitSession, error)
	GetInitSession(ctx context.Context, id string) (*core.ConnectionInitSession, error)
	UpdateInitSessionStatus(ctx context.Context, id string, status core.InitSessionStatus, redirectSessionID *string) error
}

// RedirectSessionStorer persists short-lived OAuth redirect codes.
type RedirectSessionStorer interface {
	CreateRedirectSession(ctx context.Context, id string, s core.RedirectSession) error
	GetRedirectSession(ctx context.Context, id string) (*core.RedirectSession, error)
	DeleteRedirectSession(ctx context.Context, id string) error
}

// SyncStorer persists sync definitions (one per authenticated source
// connection) and their scheduling state.
type SyncStorer interface {
	CreateSync(ctx context.Context, s core.Sync) (*core.Sync, error)
	GetSync(ctx context.Context, id string) (*core.Sync, error)
	ListDueSyncs(ctx context.Context, before time.Time) ([]core.Sync, error)
	UpdateSyncSchedule(ctx context.Context, id string, next *time.Time) error
	DeleteSync(ctx context.Context, id string) error
}

// SyncJobStorer persists individual sync run records and their terminal
// counters (spec §8 property: SyncJob state monotonicity).
type SyncJobStorer interface {
	CreateSyncJob(ctx context.Context, job core.SyncJob) (*core.SyncJob, error)
	GetSyncJob(ctx context.Context, id string) (*core.SyncJob, error)
	UpdateSyncJob(ctx context.Context, job core.SyncJob) error
	ListSyncJobs(ctx context.Context, syncID string, limit int) ([]core.SyncJob, error)
}

// EntityStorer persists the Sync Runner's per-entity reconciliation state.
// It is distinct from the vector store: this is bookkeeping metadata the
// runner diffs against, not the embedded content itself.
type EntityStorer interface {
	ListEntityHashes(ctx context.Context, syncID string) (map[string]core.EntityRecord, error)
	UpsertEntity(ctx context.Context, rec core.EntityRecord) error
	DeleteEntity(ctx context.Context, syncID, entityID string) error
	DeleteEntitiesBySyncID(ctx context.Context, syncID string) error
}

// Store is the full persisted-state contract every backend implements.
type Store interface {
	OrganizationStorer
	CollectionStorer
	CredentialStorer
	SourceConnectionStorer
	ConnectionInitSessionStorer
	RedirectSessionStorer
	SyncStorer
	SyncJobStorer
	EntityStorer

	Close()
}

// Config selects and configures exactly one backend.
type Config struct {
	Postgres *PostgresConfig
	SQLite   *SQLiteConfig
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	Datasource      string
	Schema          string
	TablePrefix     string
	MigrationsTable string
}

// SQLiteConfig configures the embedded SQLite backend, used for
// single-node or development deployments where running Postgres is
// unwarranted.
type SQLiteConfig struct {
	Datasource  string
	TablePrefix string
}

// New builds the configured backend. Exactly one of cfg.Postgres or
// cfg.SQLite must be set.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch {
	case cfg.Postgres != nil:
		return postgres.New(ctx, postgres.Config{
			Datasource:      cfg.Postgres.Datasource,
			Schema:          cfg.Postgres.Schema,
			TablePrefix:     cfg.Postgres.TablePrefix,
			MigrationsTable: cfg.Postgres.MigrationsTable,
		})
	case cfg.SQLite != nil:
		return sqlite3.New(ctx, sqlite3.Config{
			Datasource:  cfg.SQLite.Datasource,
			TablePrefix: cfg.SQLite.TablePrefix,
		})
	default:
		return nil, fmt.Errorf("store: no backend configured")
	}
}
