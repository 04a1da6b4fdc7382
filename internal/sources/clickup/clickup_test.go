package clickup

import (
	"testing"
)

func TestParseEpochMillis(t *testing.T) {
	ms, err := parseEpochMillis("1700000000000")
	if err != nil {
		t.Fatalf("parseEpochMillis: %v", err)
	}
	if ms != 1700000000000 {
		t.Errorf("ms = %d, want 1700000000000", ms)
	}
}

func TestParseEpochMillis_Empty(t *testing.T) {
	if _, err := parseEpochMillis(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestParseEpochMillis_NonNumeric(t *testing.T) {
	if _, err := parseEpochMillis("not-a-number"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestListToEntity(t *testing.T) {
	sp := clickupSpace{ID: "space-1", Name: "Engineering"}
	l := clickupList{ID: "list-1", Name: "Sprint Backlog"}

	e := listToEntity(sp, l)
	if e.EntityID != "list-1" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if len(e.Breadcrumbs) != 1 || e.Breadcrumbs[0] != "space-1" {
		t.Errorf("Breadcrumbs = %v, want [space-1]", e.Breadcrumbs)
	}
	if e.Fields["space_name"] != "Engineering" {
		t.Errorf("Fields[space_name] = %v", e.Fields["space_name"])
	}
}

func TestTaskToEntity(t *testing.T) {
	sp := clickupSpace{ID: "space-1"}
	l := clickupList{ID: "list-1"}
	task := clickupTask{
		ID:          "task-1",
		Name:        "Fix bug",
		Description: "Investigate crash",
		URL:         "https://app.clickup.com/t/task-1",
		DateCreated: "1700000000000",
		DateUpdated: "1700000100000",
	}
	task.Status.Status = "in progress"

	e := taskToEntity(sp, l, task)
	if len(e.Breadcrumbs) != 2 || e.Breadcrumbs[0] != "space-1" || e.Breadcrumbs[1] != "list-1" {
		t.Errorf("Breadcrumbs = %v", e.Breadcrumbs)
	}
	if e.CreatedAt == nil || e.UpdatedAt == nil {
		t.Fatal("CreatedAt/UpdatedAt should parse from valid epoch millis")
	}
	if e.Fields["status"] != "in progress" {
		t.Errorf("Fields[status] = %v", e.Fields["status"])
	}
}
