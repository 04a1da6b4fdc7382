package access

import "testing"

func TestNormalizeNamespacesAndDeduplicates(t *testing.T) {
	n := NewNormalizer()
	ac := n.Normalize([]Principal{
		{Kind: PrincipalUser, ID: "alice"},
		{Kind: PrincipalGroupSharePoint, ID: "team-x"},
		{Kind: PrincipalUser, ID: "alice"},
	}, false)

	if ac.IsPublic {
		t.Fatal("IsPublic = true, want false")
	}
	if len(ac.Viewers) != 2 {
		t.Fatalf("Viewers = %v, want 2 deduplicated entries", ac.Viewers)
	}
	want := map[string]bool{"user:alice": true, "group:sp:team-x": true}
	for _, v := range ac.Viewers {
		if !want[v] {
			t.Errorf("unexpected viewer %q", v)
		}
	}
}

func TestNormalizePublicEntityHasNoViewers(t *testing.T) {
	n := NewNormalizer()
	ac := n.Normalize([]Principal{{Kind: PrincipalUser, ID: "alice"}}, true)

	if !ac.IsPublic {
		t.Fatal("IsPublic = false, want true")
	}
	if len(ac.Viewers) != 0 {
		t.Errorf("Viewers = %v, want empty for a public entity", ac.Viewers)
	}
}

func TestNormalizeSkipsEmptyFragments(t *testing.T) {
	n := NewNormalizer()
	ac := n.Normalize([]Principal{{Kind: PrincipalUser, ID: ""}, {Kind: "", ID: "bob"}}, false)

	if len(ac.Viewers) != 0 {
		t.Errorf("Viewers = %v, want none from incomplete fragments", ac.Viewers)
	}
}
