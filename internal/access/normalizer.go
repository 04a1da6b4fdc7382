// Package access implements Access Control Ingest (C13): normalizing a
// driver's raw per-entity principal fragments into core.AccessControl's
// namespaced Viewers, and materializing the optional group-membership
// graph a handful of drivers (sharepoint) expose so the Search Pipeline
// can expand a querying user into every viewer id that covers them.
package access

import (
	"fmt"
	"sort"

	"github.com/airweave-core/airweave-core/internal/core"
)

// PrincipalKind namespaces a raw principal id by the directory it comes
// from, since "alice" means different things in SharePoint's own user
// store versus an Azure AD group.
type PrincipalKind string

const (
	PrincipalUser                 PrincipalKind = "user"
	PrincipalGroupSharePoint      PrincipalKind = "group:sp"
	PrincipalGroupActiveDirectory PrincipalKind = "group:ad"
)

// Principal is one raw viewer fragment a driver attaches to an entity,
// before namespacing.
type Principal struct {
	Kind PrincipalKind
	ID   string
}

// Normalizer builds core.AccessControl from a driver's raw principal
// fragments. It holds no state; a single instance can be shared.
type Normalizer struct{}

// NewNormalizer builds a Normalizer.
func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize namespaces and deduplicates principals into sorted Viewers. A
// public entity is recorded as IsPublic with no viewer list, matching
// core.AccessControl's documented zero-value-means-unrestricted shape
// collapsed into a single explicit flag instead.
func (n *Normalizer) Normalize(principals []Principal, isPublic bool) *core.AccessControl {
	if isPublic {
		return &core.AccessControl{IsPublic: true}
	}

	seen := make(map[string]bool, len(principals))
	viewers := make([]string, 0, len(principals))
	for _, p := range principals {
		if p.ID == "" || p.Kind == "" {
			continue
		}
		key := fmt.Sprintf("%s:%s", p.Kind, p.ID)
		if seen[key] {
			continue
		}
		seen[key] = true
		viewers = append(viewers, key)
	}
	sort.Strings(viewers)

	return &core.AccessControl{Viewers: viewers}
}
