// Package providers defines the Embedding & Reranking Providers contract
// (C7): the narrow interfaces the Sync Runner and Search Pipeline embed
// and rerank through, independent of which upstream model vendor backs a
// given Collection's preference list.
package providers

import "context"

// Embedder turns text into a dense vector. Embedding the same text twice
// must return an identical vector (spec.md §8's determinism law) — callers
// never retry an Embedder call expecting a different result.
type Embedder interface {
	// Embed returns one dense vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the vector size this embedder produces, used to
	// resolve a Collection's VectorSize at creation time.
	Dimensions() int
}

// SparseEmbedder turns text into a sparse (token-weight) vector, used for
// the "bm25" field alongside the dense "default" field.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, texts []string) ([]map[uint32]float32, error)
}

// RerankCandidate is one document considered for reranking against a query.
type RerankCandidate struct {
	ID   string
	Text string
}

// RerankResult pairs a candidate's ID with its reranked relevance score,
// returned in descending score order.
type RerankResult struct {
	ID    string
	Score float64
}

// Reranker reorders search candidates by relevance to query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)
}

// Message is one turn of a chat-style LLM call.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// LLM is the narrow chat-completion contract used by the Search Pipeline's
// answer-generation stage.
type LLM interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ProviderModel names one entry of an ordered preference list (§6): a
// provider short name plus the model identifier to call on it.
type ProviderModel struct {
	Provider string
	Model    string
}
