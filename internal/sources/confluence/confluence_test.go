package confluence

import (
	"testing"
	"time"
)

func TestPageToEntity(t *testing.T) {
	p := confluenceContent{
		ID:    "123",
		Type:  "page",
		Title: "Runbook",
		Space: confluenceSpace{Key: "ENG"},
		Version: confluenceVersion{
			Number: 4,
			When:   "2024-05-01T10:00:00Z",
		},
		Ancestors: []confluenceAncestor{{ID: "1"}, {ID: "2"}},
	}
	p.Version.By.AccountID = "acct-1"
	p.Body.Storage.Value = "<p>contents</p>"

	e := pageToEntity(p)
	if e.EntityID != "123" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if len(e.Breadcrumbs) != 2 || e.Breadcrumbs[1] != "2" {
		t.Errorf("Breadcrumbs = %v", e.Breadcrumbs)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if e.UpdatedAt == nil || !e.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", e.UpdatedAt, want)
	}
	if e.TextualRepresentation != "<p>contents</p>" {
		t.Errorf("TextualRepresentation = %q", e.TextualRepresentation)
	}
	if e.Fields["space_key"] != "ENG" {
		t.Errorf("Fields[space_key] = %v", e.Fields["space_key"])
	}
}

func TestAttachmentToEntity(t *testing.T) {
	page := confluenceContent{ID: "123"}
	att := confluenceContent{
		ID:    "att-1",
		Title: "diagram.png",
	}
	att.Extensions.MediaType = "image/png"
	att.Extensions.FileSize = 2048
	att.Links.Download = "/download/att-1"

	e := attachmentToEntity(page, att)
	if e.EntityID != "att-1" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if len(e.Breadcrumbs) != 1 || e.Breadcrumbs[0] != "123" {
		t.Errorf("Breadcrumbs = %v, want [123]", e.Breadcrumbs)
	}
	if e.File == nil {
		t.Fatal("File should be set for an attachment")
	}
	if e.File.MimeType != "image/png" || e.File.Size != 2048 {
		t.Errorf("File = %+v", e.File)
	}
}
