package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airweave-core/airweave-core/internal/providers"
)

func TestEmbed_ReturnsVectorsInRequestOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingsResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{
				{Embedding: []float32{0.2}, Index: 1},
				{Embedding: []float32{0.1}, Index: 0},
			},
		})
	}))
	defer srv.Close()

	p, err := New("key", "text-embedding-3-small", "gpt-4o", srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 0.1 || got[1][0] != 0.2 {
		t.Errorf("Embed out of order: %v", got)
	}
}

func TestNew_RejectsUnsupportedEmbeddingModel(t *testing.T) {
	if _, err := New("key", "not-a-real-model", "gpt-4o", "", ""); err == nil {
		t.Error("New with unsupported embedding model should error")
	}
}

func TestDimensions_MatchesModel(t *testing.T) {
	p, err := New("key", "text-embedding-3-large", "gpt-4o", "http://unused", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Dimensions() != 3072 {
		t.Errorf("Dimensions() = %d, want 3072", p.Dimensions())
	}
}

func TestChat_ReturnsFirstChoiceContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: "hello there"}},
			},
		})
	}))
	defer srv.Close()

	p, err := New("key", "text-embedding-3-small", "gpt-4o", srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Chat(context.Background(), []providers.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Chat = %q, want %q", got, "hello there")
	}
}
