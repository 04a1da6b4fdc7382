package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airweave-core/airweave-core/internal/providers"
)

func TestChat_ConcatenatesTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{
				{Type: "text", Text: "hello "},
				{Type: "text", Text: "world"},
			},
		})
	}))
	defer srv.Close()

	p, err := New("key", "claude-3-5-sonnet", srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Chat(context.Background(), []providers.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello world" {
		t.Errorf("Chat = %q, want %q", got, "hello world")
	}
}

func TestChat_ReturnsErrorOnUpstreamErrorType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(messagesResponse{
			Type: "error",
			Error: &struct {
				Message string `json:"message"`
			}{Message: "overloaded"},
		})
	}))
	defer srv.Close()

	p, err := New("key", "claude-3-5-sonnet", srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Chat(context.Background(), []providers.Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Error("Chat with error-type response should return an error")
	}
}
