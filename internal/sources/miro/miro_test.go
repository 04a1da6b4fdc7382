package miro

import (
	"testing"
	"time"
)

func TestBoardToEntity(t *testing.T) {
	team := miroTeam{ID: "team-1", Name: "Design"}
	board := miroBoard{
		ID:         "board-1",
		Name:       "Roadmap",
		ViewLink:   "https://miro.com/board-1",
		CreatedAt:  "2024-01-01T00:00:00Z",
		ModifiedAt: "2024-02-01T00:00:00Z",
	}

	e := boardToEntity(team, board)
	if e.EntityID != "board-1" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if len(e.Breadcrumbs) != 1 || e.Breadcrumbs[0] != "team-1" {
		t.Errorf("Breadcrumbs = %v, want [team-1]", e.Breadcrumbs)
	}
	if e.Fields["team_name"] != "Design" {
		t.Errorf("Fields[team_name] = %v", e.Fields["team_name"])
	}
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if e.UpdatedAt == nil || !e.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", e.UpdatedAt, want)
	}
}

func TestItemToEntity_ThreeLevelBreadcrumbs(t *testing.T) {
	team := miroTeam{ID: "team-1"}
	board := miroBoard{ID: "board-1"}
	item := miroItem{
		ID:   "item-1",
		Type: "sticky_note",
		Data: miroItemData{Title: "Idea", Content: "Ship it"},
	}

	e := itemToEntity(team, board, item)
	if len(e.Breadcrumbs) != 2 || e.Breadcrumbs[0] != "team-1" || e.Breadcrumbs[1] != "board-1" {
		t.Errorf("Breadcrumbs = %v, want [team-1 board-1]", e.Breadcrumbs)
	}
	if e.Name != "Idea" {
		t.Errorf("Name = %q", e.Name)
	}
	if e.TextualRepresentation != "Ship it" {
		t.Errorf("TextualRepresentation = %q", e.TextualRepresentation)
	}
	if e.Fields["type"] != "sticky_note" {
		t.Errorf("Fields[type] = %v", e.Fields["type"])
	}
}
