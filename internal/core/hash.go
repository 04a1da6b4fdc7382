package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// ContentHash computes a stable hash over an entity's content-only fields
// (everything except SystemMetadata, which the pipeline attaches). Two
// calls against an unchanged source entity must return the same hash
// (spec.md §8 property 1); the encoding below sorts map keys and excludes
// any field the sync pipeline, not the driver, is responsible for.
func ContentHash(e Entity) string {
	type accessView struct {
		Viewers  []string `json:"viewers,omitempty"`
		IsPublic bool     `json:"is_public,omitempty"`
	}
	type fileView struct {
		URL      string `json:"url,omitempty"`
		FileType string `json:"file_type,omitempty"`
		MimeType string `json:"mime_type,omitempty"`
		Filename string `json:"filename,omitempty"`
	}
	type view struct {
		EntityID    string         `json:"entity_id"`
		Breadcrumbs []string       `json:"breadcrumbs"`
		Name        string         `json:"name"`
		Text        string         `json:"text"`
		Access      *accessView    `json:"access,omitempty"`
		Fields      map[string]any `json:"fields,omitempty"`
		File        *fileView      `json:"file,omitempty"`
	}

	v := view{
		EntityID:    e.EntityID,
		Breadcrumbs: e.Breadcrumbs,
		Name:        e.Name,
		Text:        e.TextualRepresentation,
		Fields:      sortedCopy(e.Fields),
	}
	if e.Access != nil {
		v.Access = &accessView{Viewers: sortedStrings(e.Access.Viewers), IsPublic: e.Access.IsPublic}
	}
	if e.File != nil {
		v.File = &fileView{URL: e.File.URL, FileType: e.File.FileType, MimeType: e.File.MimeType, Filename: e.File.Filename}
	}

	// encoding/json already sorts map keys when marshaling map[string]any,
	// so a plain Marshal is deterministic across runs.
	b, err := json.Marshal(v)
	if err != nil {
		// Fields should always be JSON-encodable; a marshal failure here
		// means a driver put something exotic (e.g. a channel) into
		// Fields, which is a driver bug, not a runtime condition to hide.
		panic("core: entity fields not json-encodable: " + err.Error())
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func sortedCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
