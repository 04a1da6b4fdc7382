package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/airweave-core/airweave-core/internal/providers"
)

func TestToLangchainRole(t *testing.T) {
	cases := []struct {
		role string
		want llms.ChatMessageType
	}{
		{"system", llms.ChatMessageTypeSystem},
		{"assistant", llms.ChatMessageTypeAI},
		{"user", llms.ChatMessageTypeHuman},
		{"", llms.ChatMessageTypeHuman},
	}
	for _, c := range cases {
		if got := toLangchainRole(c.role); got != c.want {
			t.Errorf("toLangchainRole(%q) = %v, want %v", c.role, got, c.want)
		}
	}
}

func TestRerank_OrdersByDescendingScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rerankResponse{
			Results: []rerankResult{
				{Index: 0, RelevanceScore: 0.2},
				{Index: 1, RelevanceScore: 0.9},
			},
		})
	}))
	defer srv.Close()

	p, err := newWithRerankBaseURL("key", "command-r", "rerank-v3.5", srv.URL)
	if err != nil {
		t.Fatalf("newWithRerankBaseURL: %v", err)
	}

	got, err := p.Rerank(context.Background(), "query", []providers.RerankCandidate{
		{ID: "a", Text: "doc a"},
		{ID: "b", Text: "doc b"},
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("Rerank order = %+v, want b before a", got)
	}
}

func TestRerank_EmptyCandidatesReturnsNil(t *testing.T) {
	p, err := newWithRerankBaseURL("key", "command-r", "rerank-v3.5", "http://unused")
	if err != nil {
		t.Fatalf("newWithRerankBaseURL: %v", err)
	}
	got, err := p.Rerank(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if got != nil {
		t.Errorf("Rerank(nil) = %v, want nil", got)
	}
}
