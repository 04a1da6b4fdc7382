package registry

import (
	"fmt"
	"sort"
)

// FieldType enumerates the config value types the Schema DSL can check.
// This mirrors the narrow subset of JSON Schema the teacher's
// SanitizeSchema strips down to for restrictive provider APIs — we go the
// other direction here (defining a schema, not sanitizing one) but keep
// the same "small closed vocabulary over map[string]any" shape.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldBool   FieldType = "bool"
	// FieldSecret is a string that must never be echoed back in API
	// responses or logs; callers redact fields of this type explicitly.
	FieldSecret FieldType = "secret"
)

// Field describes one entry in a source connection's config map.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// Schema is the ordered set of config fields a source integration
// accepts. Order is preserved for documentation/UI rendering but
// validation is order-independent.
type Schema []Field

// Validate checks that config satisfies the schema: every required field
// present with the right Go type, and no unknown keys. Returns a field ->
// reason map suitable for errkind.Error.WithFields, nil if config is valid.
// A nil Schema (the source declares none) accepts any config.
func (s Schema) Validate(config map[string]any) map[string]string {
	if s == nil {
		return nil
	}

	problems := map[string]string{}

	known := make(map[string]Field, len(s))
	for _, f := range s {
		known[f.Name] = f
	}

	for _, f := range s {
		v, present := config[f.Name]
		if !present {
			if f.Required {
				problems[f.Name] = "required field is missing"
			}
			continue
		}
		if !typeMatches(f.Type, v) {
			problems[f.Name] = fmt.Sprintf("expected %s, got %T", f.Type, v)
		}
	}

	for k := range config {
		if _, ok := known[k]; !ok {
			problems[k] = "unknown field"
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}

// SecretFields returns the field names the schema marks as FieldSecret,
// sorted for deterministic log/redaction output.
func (s Schema) SecretFields() []string {
	var out []string
	for _, f := range s {
		if f.Type == FieldSecret {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}

func typeMatches(t FieldType, v any) bool {
	switch t {
	case FieldString, FieldSecret:
		_, ok := v.(string)
		return ok
	case FieldInt:
		switch v.(type) {
		case int, int32, int64, float64:
			return true
		default:
			return false
		}
	case FieldBool:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}
