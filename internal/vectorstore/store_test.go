package vectorstore

import "testing"

func TestPointID_DeterministicForSameInputs(t *testing.T) {
	dbEntityID := "123e4567-e89b-12d3-a456-426614174000"
	a, err := PointID(dbEntityID, "entity-1")
	if err != nil {
		t.Fatalf("PointID: %v", err)
	}
	b, err := PointID(dbEntityID, "entity-1")
	if err != nil {
		t.Fatalf("PointID: %v", err)
	}
	if a != b {
		t.Errorf("PointID not deterministic: %s != %s", a, b)
	}
}

func TestPointID_DiffersForDifferentEntityIDs(t *testing.T) {
	dbEntityID := "123e4567-e89b-12d3-a456-426614174000"
	a, err := PointID(dbEntityID, "entity-1")
	if err != nil {
		t.Fatalf("PointID: %v", err)
	}
	b, err := PointID(dbEntityID, "entity-2")
	if err != nil {
		t.Fatalf("PointID: %v", err)
	}
	if a == b {
		t.Errorf("PointID should differ for different entity ids, both = %s", a)
	}
}

func TestPointID_RejectsNonUUIDNamespace(t *testing.T) {
	if _, err := PointID("not-a-uuid", "entity-1"); err == nil {
		t.Error("PointID with invalid db_entity_id should error")
	}
}
