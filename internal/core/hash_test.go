package core

import "testing"

func TestContentHashStableAcrossRuns(t *testing.T) {
	mk := func() Entity {
		return Entity{
			EntityID:              "page-1",
			Breadcrumbs:           []string{"ws-1", "db-1"},
			Name:                  "Quarterly Plan",
			TextualRepresentation: "some body text",
			Access:                &AccessControl{Viewers: []string{"user:b@x", "user:a@x"}},
			Fields:                map[string]any{"archived": false, "icon": "📄"},
		}
	}

	h1 := ContentHash(mk())
	h2 := ContentHash(mk())
	if h1 != h2 {
		t.Fatalf("content hash not stable: %s != %s", h1, h2)
	}
}

func TestContentHashIgnoresSystemMetadata(t *testing.T) {
	e1 := Entity{EntityID: "x", Name: "A"}
	e2 := e1
	e2.System = SystemMetadata{SyncJobID: "job-2", ChunkIndex: 7}

	if ContentHash(e1) != ContentHash(e2) {
		t.Fatalf("content hash must not depend on SystemMetadata")
	}
}

func TestContentHashChangesWithContent(t *testing.T) {
	e1 := Entity{EntityID: "x", Name: "A"}
	e2 := Entity{EntityID: "x", Name: "B"}

	if ContentHash(e1) == ContentHash(e2) {
		t.Fatalf("content hash should change when content changes")
	}
}

func TestContentHashViewerOrderIndependent(t *testing.T) {
	e1 := Entity{EntityID: "x", Access: &AccessControl{Viewers: []string{"user:a", "user:b"}}}
	e2 := Entity{EntityID: "x", Access: &AccessControl{Viewers: []string{"user:b", "user:a"}}}

	if ContentHash(e1) != ContentHash(e2) {
		t.Fatalf("viewer order should not affect content hash")
	}
}
