// Package registry implements the Source Contract & Registry (C3): the
// lookup table mapping an integration short name ("notion", "slack", ...)
// to its auth requirements, config schema, and driver factory. Source
// drivers self-register into a package-level Registry from an init()
// function the way database/sql drivers register themselves, so adding a
// connector never touches the registry's own code.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/sources"
)

// Entry describes one registered source integration.
type Entry struct {
	ShortName string
	Name      string

	AuthMethod core.AuthMethod
	// OAuthType only applies when AuthMethod is one of the OAuth-based
	// methods; zero value for AuthDirect/AuthProvider.
	OAuthType core.OAuthType

	ConfigSchema     Schema
	CredentialSchema Schema

	SupportsFederatedSearch  bool
	SupportsContinuousCursor bool
	SupportsMemberships      bool
	// SupportsTemporalRelevance marks a source whose entities carry a
	// reliable last-modified timestamp the Search Pipeline's
	// TemporalRelevance operation (§4.10) can decay scores against.
	SupportsTemporalRelevance bool

	// RequiresLegacyOAuth1a marks a source whose provider never migrated
	// to OAuth2 and still requires the three-leg OAuth 1.0a handshake
	// (request token -> user authorization -> access token exchange)
	// instead of the standard authorization-code flow.
	RequiresLegacyOAuth1a bool

	// RequiresBYOC rejects a plain OAuthBrowser creation request: the
	// caller must supply its own client_id/client_secret.
	RequiresBYOC bool

	New sources.Factory
}

// Registry is a concurrency-safe lookup table of Entry by ShortName.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry. It panics on a duplicate short name — two
// drivers registering under the same name is a build-time wiring bug, not
// a runtime condition, the same way database/sql panics on a duplicate
// driver name.
func (r *Registry) Register(e Entry) {
	if e.ShortName == "" {
		panic("registry: Entry.ShortName must not be empty")
	}
	if e.New == nil {
		panic(fmt.Sprintf("registry: Entry %q has a nil Factory", e.ShortName))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.ShortName]; exists {
		panic(fmt.Sprintf("registry: duplicate registration for %q", e.ShortName))
	}
	r.entries[e.ShortName] = e
}

// Default is the package-level Registry every source driver's init()
// registers into, the way database/sql drivers register into
// sql.Register's package-level map.
var Default = New()

// Register adds e to Default. Drivers call this from an init() function.
func Register(e Entry) { Default.Register(e) }

// Lookup returns the Entry for a short name.
func (r *Registry) Lookup(shortName string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[shortName]
	return e, ok
}

// All returns every registered entry, sorted by ShortName.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortName < out[j].ShortName })
	return out
}
