package registry

import (
	"context"
	"testing"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/sources"
)

type noopDriver struct{}

func (noopDriver) Validate(ctx context.Context) error { return nil }
func (noopDriver) GenerateEntities(ctx context.Context, cursor []byte) (<-chan sources.Batch, <-chan error) {
	ch := make(chan sources.Batch)
	errCh := make(chan error)
	close(ch)
	close(errCh)
	return ch, errCh
}

func testEntry(shortName string) Entry {
	return Entry{
		ShortName:  shortName,
		Name:       shortName,
		AuthMethod: core.AuthDirect,
		ConfigSchema: Schema{
			{Name: "workspace_id", Type: FieldString, Required: true},
		},
		New: func(creds map[string]any, config map[string]any, tok sources.TokenGetter) (sources.Driver, error) {
			return noopDriver{}, nil
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	r.Register(testEntry("clickup"))

	e, ok := r.Lookup("clickup")
	if !ok {
		t.Fatal("expected clickup to be registered")
	}
	if e.Name != "clickup" {
		t.Fatalf("got name %q", e.Name)
	}

	if _, ok := r.Lookup("does-not-exist"); ok {
		t.Fatal("expected lookup of unregistered short name to fail")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := New()
	r.Register(testEntry("notion"))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register(testEntry("notion"))
}

func TestAllIsSortedByShortName(t *testing.T) {
	r := New()
	r.Register(testEntry("zoom"))
	r.Register(testEntry("calendly"))
	r.Register(testEntry("miro"))

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if all[0].ShortName != "calendly" || all[1].ShortName != "miro" || all[2].ShortName != "zoom" {
		t.Fatalf("entries not sorted: %v", []string{all[0].ShortName, all[1].ShortName, all[2].ShortName})
	}
}

func TestSchemaValidateRequiredAndType(t *testing.T) {
	s := Schema{
		{Name: "api_key", Type: FieldSecret, Required: true},
		{Name: "page_size", Type: FieldInt, Required: false},
		{Name: "include_archived", Type: FieldBool, Required: false},
	}

	if problems := s.Validate(map[string]any{"api_key": "sk-1", "page_size": 50, "include_archived": true}); problems != nil {
		t.Fatalf("expected valid config, got problems: %v", problems)
	}

	problems := s.Validate(map[string]any{"page_size": "fifty"})
	if problems == nil {
		t.Fatal("expected problems for missing required field and wrong type")
	}
	if _, ok := problems["api_key"]; !ok {
		t.Error("expected api_key to be reported missing")
	}
	if _, ok := problems["page_size"]; !ok {
		t.Error("expected page_size to be reported as wrong type")
	}
}

func TestSchemaValidateRejectsUnknownField(t *testing.T) {
	s := Schema{{Name: "workspace_id", Type: FieldString, Required: true}}

	problems := s.Validate(map[string]any{"workspace_id": "ws-1", "mystery": "oops"})
	if problems == nil {
		t.Fatal("expected unknown field to be reported")
	}
	if _, ok := problems["mystery"]; !ok {
		t.Error("expected 'mystery' to be flagged as unknown")
	}
}

func TestSchemaSecretFieldsSorted(t *testing.T) {
	s := Schema{
		{Name: "client_secret", Type: FieldSecret},
		{Name: "api_key", Type: FieldSecret},
		{Name: "page_size", Type: FieldInt},
	}

	got := s.SecretFields()
	want := []string{"api_key", "client_secret"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}
