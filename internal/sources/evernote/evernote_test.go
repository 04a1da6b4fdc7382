package evernote

import (
	"testing"
	"time"
)

func TestMillisToTime_Zero(t *testing.T) {
	if got := millisToTime(0); !got.IsZero() {
		t.Errorf("millisToTime(0) = %v, want zero time", got)
	}
}

func TestMillisToTime_Valid(t *testing.T) {
	got := millisToTime(1700000000000)
	want := time.UnixMilli(1700000000000).UTC()
	if !got.Equal(want) {
		t.Errorf("millisToTime = %v, want %v", got, want)
	}
}

func TestNotebookToEntity(t *testing.T) {
	nb := evernoteNotebook{
		GUID:           "nb-1",
		Name:           "Work",
		Stack:          "Projects",
		ServiceCreated: 1700000000000,
		ServiceUpdated: 1700000100000,
	}

	e := notebookToEntity(nb)
	if e.EntityID != "nb-1" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if e.Fields["stack"] != "Projects" {
		t.Errorf("Fields[stack] = %v", e.Fields["stack"])
	}
	if e.CreatedAt == nil {
		t.Fatal("CreatedAt should be set")
	}
}

func TestNoteToEntity(t *testing.T) {
	nb := evernoteNotebook{GUID: "nb-1"}
	note := evernoteNote{
		GUID:             "note-1",
		Title:            "Meeting Notes",
		ContentPlainText: "Discussed roadmap.",
		Created:          1700000000000,
		Updated:          1700000100000,
	}

	e := noteToEntity(nb, note)
	if len(e.Breadcrumbs) != 1 || e.Breadcrumbs[0] != "nb-1" {
		t.Errorf("Breadcrumbs = %v, want [nb-1]", e.Breadcrumbs)
	}
	if e.TextualRepresentation != "Discussed roadmap." {
		t.Errorf("TextualRepresentation = %q", e.TextualRepresentation)
	}
}
