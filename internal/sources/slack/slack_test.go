package slack

import (
	"testing"
)

func TestParseSlackTS_SplitsSecondsAndMicros(t *testing.T) {
	sec, micro, ok := parseSlackTS("1700000000.123456")
	if !ok {
		t.Fatal("expected ok = true")
	}
	if sec != 1700000000 {
		t.Errorf("sec = %d, want 1700000000", sec)
	}
	if micro != 123456 {
		t.Errorf("micro = %d, want 123456", micro)
	}
}

func TestParseSlackTS_NoFractionalPart(t *testing.T) {
	sec, micro, ok := parseSlackTS("1700000000")
	if !ok {
		t.Fatal("expected ok = true")
	}
	if sec != 1700000000 || micro != 0 {
		t.Errorf("got (%d, %d), want (1700000000, 0)", sec, micro)
	}
}

func TestParseSlackTS_Invalid(t *testing.T) {
	if _, _, ok := parseSlackTS("not-a-ts"); ok {
		t.Error("expected ok = false for malformed timestamp")
	}
}

func TestMessageToEntity(t *testing.T) {
	m := slackMessage{
		Channel: "C123",
		User:    "U456",
		Text:    "hello world",
		Ts:      "1700000000.000100",
	}

	e := messageToEntity(m)
	if e.EntityID != "C123:1700000000.000100" {
		t.Errorf("EntityID = %q", e.EntityID)
	}
	if len(e.Breadcrumbs) != 1 || e.Breadcrumbs[0] != "C123" {
		t.Errorf("Breadcrumbs = %v", e.Breadcrumbs)
	}
	if e.CreatedAt == nil {
		t.Fatal("CreatedAt should be set from a valid timestamp")
	}
	if e.CreatedAt.Unix() != 1700000000 {
		t.Errorf("CreatedAt.Unix() = %d, want 1700000000", e.CreatedAt.Unix())
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("short", 80); got != "short" {
		t.Errorf("truncateText(short) = %q, want unchanged", got)
	}
	long := "0123456789"
	if got := truncateText(long, 5); got != "01234..." {
		t.Errorf("truncateText = %q, want 01234...", got)
	}
}

func TestUrlEscape(t *testing.T) {
	if got := urlEscape("a b&c"); got != "a+b%26c" {
		t.Errorf("urlEscape = %q, want a+b%%26c", got)
	}
}
