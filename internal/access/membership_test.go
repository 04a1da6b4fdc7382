package access

import (
	"context"
	"testing"

	"github.com/airweave-core/airweave-core/internal/core"
)

func sendMemberships(memberships []core.Membership) (<-chan core.Membership, <-chan error) {
	mc := make(chan core.Membership, len(memberships))
	ec := make(chan error)
	for _, m := range memberships {
		mc <- m
	}
	close(mc)
	close(ec)
	return mc, ec
}

func TestIngestRecordsDirectMembership(t *testing.T) {
	g := NewMembershipGraph()
	mc, ec := sendMemberships([]core.Membership{
		{MemberID: "alice", MemberType: "user", GroupID: "team-x"},
	})

	if err := g.Ingest(context.Background(), mc, ec); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	expanded := g.Expand("user:alice")
	if !contains(expanded, "group:sp:team-x") {
		t.Errorf("Expand(user:alice) = %v, want it to include group:sp:team-x", expanded)
	}
}

func TestExpandFollowsNestedGroups(t *testing.T) {
	g := NewMembershipGraph()
	mc, ec := sendMemberships([]core.Membership{
		{MemberID: "alice", MemberType: "user", GroupID: "team-x"},
		{MemberID: "team-x", MemberType: "group", GroupID: "org-wide"},
	})

	if err := g.Ingest(context.Background(), mc, ec); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	expanded := g.Expand("user:alice")
	for _, want := range []string{"user:alice", "group:sp:team-x", "group:sp:org-wide"} {
		if !contains(expanded, want) {
			t.Errorf("Expand(user:alice) = %v, want it to include %s", expanded, want)
		}
	}
}

func TestExpandUnknownUserReturnsJustThemselves(t *testing.T) {
	g := NewMembershipGraph()

	expanded := g.Expand("user:nobody")
	if len(expanded) != 1 || expanded[0] != "user:nobody" {
		t.Errorf("Expand(user:nobody) = %v, want just themselves", expanded)
	}
}

func TestIngestPropagatesGenerationError(t *testing.T) {
	g := NewMembershipGraph()
	mc := make(chan core.Membership)
	ec := make(chan error, 1)
	close(mc)
	ec <- context.DeadlineExceeded
	close(ec)

	if err := g.Ingest(context.Background(), mc, ec); err == nil {
		t.Fatal("Ingest() error = nil, want the generation error propagated")
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
