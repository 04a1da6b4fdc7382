package sqlite3

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// sqlTime scans/writes a time.Time portably against modernc.org/sqlite,
// which stores TIMESTAMP columns as plain TEXT and returns them to
// database/sql as strings rather than time.Time values.
type sqlTime struct {
	t     time.Time
	valid bool
}

func newSQLTime(t time.Time) sqlTime { return sqlTime{t: t, valid: true} }

func (s sqlTime) Value() (driver.Value, error) {
	if !s.valid {
		return nil, nil
	}
	return s.t.UTC().Format(time.RFC3339Nano), nil
}

func (s *sqlTime) Scan(src any) error {
	if src == nil {
		s.valid = false
		return nil
	}

	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case time.Time:
		s.t, s.valid = v, true
		return nil
	default:
		return fmt.Errorf("sqlTime: unsupported scan source %T", src)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("sqlTime: parse %q: %w", raw, err)
	}
	s.t, s.valid = t, true
	return nil
}

func (s sqlTime) Time() time.Time { return s.t }

func (s sqlTime) TimePtr() *time.Time {
	if !s.valid {
		return nil
	}
	t := s.t
	return &t
}

func sqlTimeValue(t time.Time) sqlTime { return newSQLTime(t) }

func sqlTimePtrValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return newSQLTime(*t)
}
