package googledocs

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestListPath_EscapesQueryAndOmitsEmptySince(t *testing.T) {
	path := listPath("", 50, "")
	if strings.Contains(path, "pageToken=") {
		t.Errorf("path should omit pageToken when empty: %s", path)
	}
	if strings.Contains(path, "modifiedTime") {
		t.Errorf("path should omit modifiedTime filter when since is empty: %s", path)
	}
	if !strings.HasPrefix(path, "/files?q=") {
		t.Errorf("path = %q, want prefix /files?q=", path)
	}
}

func TestListPath_IncludesSinceFilter(t *testing.T) {
	path := listPath("2024-01-01T00:00:00Z", 50, "tok-1")
	decoded, err := url.QueryUnescape(path)
	if err != nil {
		t.Fatalf("QueryUnescape: %v", err)
	}
	if !strings.Contains(decoded, "modifiedTime > '2024-01-01T00:00:00Z'") {
		t.Errorf("decoded path = %q, want modifiedTime filter", decoded)
	}
	if !strings.Contains(path, "pageToken=tok-1") {
		t.Errorf("path = %q, want pageToken=tok-1", path)
	}
}

func TestFileToEntity(t *testing.T) {
	f := driveFile{
		ID:           "doc-1",
		Name:         "Design Doc",
		CreatedTime:  "2024-01-01T00:00:00Z",
		ModifiedTime: "2024-03-01T00:00:00Z",
		Parents:      []string{"folder-1"},
	}

	e := fileToEntity(f)
	if e.EntityID != "doc-1" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if len(e.Breadcrumbs) != 1 || e.Breadcrumbs[0] != "folder-1" {
		t.Errorf("Breadcrumbs = %v", e.Breadcrumbs)
	}
	if e.File == nil {
		t.Fatal("File should always be set for google_docs entities")
	}
	if e.File.Filename != "Design Doc.pdf" {
		t.Errorf("File.Filename = %q", e.File.Filename)
	}
	if !strings.Contains(e.File.URL, "doc-1") {
		t.Errorf("File.URL = %q, want to contain doc id", e.File.URL)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if e.UpdatedAt == nil || !e.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", e.UpdatedAt, want)
	}
}
