// Package cohere adapts Cohere's generate and rerank APIs to
// providers.LLM and providers.Reranker. Chat goes through langchaingo's
// Cohere client (a direct teacher dependency the teacher's own code never
// imports — wired here for exactly this purpose); rerank has no
// langchaingo binding, so it calls Cohere's REST endpoint directly over
// the same klient plumbing every other provider uses.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/worldline-go/klient"

	"github.com/airweave-core/airweave-core/internal/providers"
)

const defaultRerankBaseURL = "https://api.cohere.com"

// Provider adapts Cohere to providers.LLM (via langchaingo) and
// providers.Reranker (via direct REST).
type Provider struct {
	llm          llms.Model
	rerankModel  string
	rerankClient *klient.Client
}

func New(apiKey, chatModel, rerankModel string) (*Provider, error) {
	return newWithRerankBaseURL(apiKey, chatModel, rerankModel, defaultRerankBaseURL)
}

func newWithRerankBaseURL(apiKey, chatModel, rerankModel, rerankBaseURL string) (*Provider, error) {
	llm, err := cohere.New(cohere.WithToken(apiKey), cohere.WithModel(chatModel))
	if err != nil {
		return nil, fmt.Errorf("cohere: build langchaingo client: %w", err)
	}

	rerankClient, err := klient.New(
		klient.WithBaseURL(rerankBaseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{
			"Authorization": []string{"Bearer " + apiKey},
			"Content-Type":  []string{"application/json"},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("cohere: build rerank client: %w", err)
	}

	return &Provider{llm: llm, rerankModel: rerankModel, rerankClient: rerankClient}, nil
}

var _ providers.LLM = (*Provider)(nil)
var _ providers.Reranker = (*Provider)(nil)

func (p *Provider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(toLangchainRole(m.Role), m.Content)
	}

	resp, err := p.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("cohere: generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("cohere: no completion choices returned")
	}
	return resp.Choices[0].Content, nil
}

func toLangchainRole(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

func (p *Provider) Rerank(ctx context.Context, query string, candidates []providers.RerankCandidate) ([]providers.RerankResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}

	reqBody := rerankRequest{Model: p.rerankModel, Query: query, Documents: docs, TopN: len(docs)}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("cohere: marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/v1/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("cohere: build rerank request: %w", err)
	}

	var result rerankResponse
	if err := p.rerankClient.Do(req, func(r *http.Response) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &result)
	}); err != nil {
		return nil, fmt.Errorf("cohere: rerank request: %w", err)
	}

	out := make([]providers.RerankResult, len(result.Results))
	for i, r := range result.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		out[i] = providers.RerankResult{ID: candidates[r.Index].ID, Score: r.RelevanceScore}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
