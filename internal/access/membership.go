package access

import (
	"context"
	"fmt"
	"sync"

	"github.com/airweave-core/airweave-core/internal/core"
)

// MembershipGraph materializes a source's group-membership stream (see
// sources.MembershipGenerator) into a group -> direct-member adjacency
// map, then expands it on demand so the Search Pipeline can turn one
// querying user into every viewer id — direct or via nested groups — that
// covers them.
type MembershipGraph struct {
	mu      sync.RWMutex
	members map[string][]string // group viewer id -> direct member viewer ids (users or groups)
}

// NewMembershipGraph builds an empty graph.
func NewMembershipGraph() *MembershipGraph {
	return &MembershipGraph{members: make(map[string][]string)}
}

// groupKey namespaces a Membership's GroupID the same way Normalizer
// namespaces principals, so graph keys and Viewers entries compare equal.
func groupKey(kind PrincipalKind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// Ingest drains a driver's membership stream, recording each group's
// direct members. It mirrors the Sync Runner's own dual-channel drain:
// both channels are read until each closes, and a non-nil error aborts
// once the in-flight reads are drunk dry.
func (g *MembershipGraph) Ingest(ctx context.Context, memberships <-chan core.Membership, errs <-chan error) error {
	var ingestErr error

	for memberships != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-memberships:
			if !ok {
				memberships = nil
				continue
			}
			g.add(m)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				ingestErr = fmt.Errorf("ingest memberships: %w", err)
			}
		}
	}

	return ingestErr
}

func (g *MembershipGraph) add(m core.Membership) {
	memberKind := PrincipalUser
	if m.MemberType == "group" {
		memberKind = PrincipalGroupSharePoint
	}

	group := groupKey(PrincipalGroupSharePoint, m.GroupID)
	member := groupKey(memberKind, m.MemberID)

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.members[group] {
		if existing == member {
			return
		}
	}
	g.members[group] = append(g.members[group], member)
}

// Expand returns every viewer id that covers user, starting from user's
// own viewer id and walking the membership graph breadth-first through
// however many levels of nested groups exist. The result always includes
// user's own id even if the graph has never seen them.
func (g *MembershipGraph) Expand(user string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{user: true}
	queue := []string{user}
	out := []string{user}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for group, members := range g.members {
			for _, member := range members {
				if member != current || visited[group] {
					continue
				}
				visited[group] = true
				out = append(out, group)
				queue = append(queue, group)
			}
		}
	}

	return out
}
