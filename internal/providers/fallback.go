package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// FallbackLLM tries each underlying LLM in order, advancing to the next
// only when a call fails. Per spec.md §6's provider-selection rule this
// is a call-time fallback, not a startup-time pick: every Chat call walks
// the list fresh, so a provider that fails once can still serve the next
// request once it recovers.
type FallbackLLM struct {
	names     []string
	providers []LLM
}

// NewFallbackLLM pairs each provider with the short name logged on
// failure. names and llms must be the same length and share order.
func NewFallbackLLM(names []string, llms []LLM) *FallbackLLM {
	return &FallbackLLM{names: names, providers: llms}
}

func (f *FallbackLLM) Chat(ctx context.Context, messages []Message) (string, error) {
	var errs []error
	for i, p := range f.providers {
		reply, err := p.Chat(ctx, messages)
		if err == nil {
			return reply, nil
		}
		slog.Warn("llm provider call failed, trying next", "provider", f.names[i], "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
	}
	return "", fmt.Errorf("all llm providers failed: %w", errors.Join(errs...))
}

// FallbackReranker is FallbackLLM's counterpart for Reranker.
type FallbackReranker struct {
	names     []string
	providers []Reranker
}

func NewFallbackReranker(names []string, rerankers []Reranker) *FallbackReranker {
	return &FallbackReranker{names: names, providers: rerankers}
}

func (f *FallbackReranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error) {
	var errs []error
	for i, p := range f.providers {
		results, err := p.Rerank(ctx, query, candidates)
		if err == nil {
			return results, nil
		}
		slog.Warn("rerank provider call failed, trying next", "provider", f.names[i], "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
	}
	return nil, fmt.Errorf("all rerank providers failed: %w", errors.Join(errs...))
}
