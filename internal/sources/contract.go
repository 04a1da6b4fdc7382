// Package sources defines the Source Driver contract (C4): the interface
// every connector (notion, slack, confluence, ...) implements so the Sync
// Runner can pull entities from it without knowing its wire protocol.
package sources

import (
	"context"

	"github.com/airweave-core/airweave-core/internal/core"
)

// Batch is one page of entities a driver yields during a generation pass,
// together with the cursor a caller should persist to resume from this
// point. Cursor is nil when the driver has nothing to checkpoint (full
// rescans); Done marks the final batch of a pass.
type Batch struct {
	Entities []core.Entity
	Cursor   []byte
	Done     bool
}

// TokenGetter is the narrow view of the Token Manager (C2) a driver needs:
// a bearer token for its own connection, already resolved and refreshed.
// Drivers never see a credential id or a SourceConnection.
type TokenGetter interface {
	Token(ctx context.Context) (string, error)
	RefreshOnUnauthorized(ctx context.Context) (string, error)
}

// Driver is the contract every source connector implements.
type Driver interface {
	// Validate checks that the given config and credentials are usable —
	// typically a single cheap read against the upstream API — without
	// generating any entities. Called during Source Connection creation
	// (§4.1) before the connection is marked authenticated.
	Validate(ctx context.Context) error

	// GenerateEntities streams entities starting from cursor (nil for a
	// full sync). The driver closes the entity channel when done and may
	// send at most one error before closing, after which the caller stops
	// reading. Implementations must be safe to cancel via ctx.
	GenerateEntities(ctx context.Context, cursor []byte) (<-chan Batch, <-chan error)
}

// FederatedSearcher is implemented by drivers that can answer a search
// query directly against the upstream API (slack) instead of
// only through the vector store. The Search Pipeline (C10) merges these
// results with vector-backed results when a source connection supports it
// (§4.10 "federated search").
type FederatedSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]core.Entity, error)
}

// MembershipGenerator is implemented by drivers that ingest group/ACL
// membership alongside content entities (sharepoint), feeding the Access
// Control Ingest path (C13).
type MembershipGenerator interface {
	GenerateMemberships(ctx context.Context) (<-chan core.Membership, <-chan error)
}

// Factory builds a Driver bound to one source connection's decrypted
// credentials and config. tok is nil when the connection's AuthMethod is
// core.AuthDirect and the driver reads API keys straight out of creds.
type Factory func(creds map[string]any, config map[string]any, tok TokenGetter) (Driver, error)
