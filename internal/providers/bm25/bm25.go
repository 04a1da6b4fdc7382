// Package bm25 implements a pure-Go, no-network SparseEmbedder: term
// frequencies hashed into a fixed sparse index space and weighted by a
// BM25-shaped saturation curve, so every Collection gets a sparse vector
// even when no hosted sparse-embedding API is configured.
package bm25

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/airweave-core/airweave-core/internal/providers"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Embedder is a deterministic, stateless SparseEmbedder: embedding the
// same text twice always yields the same sparse vector, satisfying
// spec.md §8's determinism law without calling out to any provider.
type Embedder struct {
	avgDocLength float64
}

// New builds an Embedder. avgDocLength calibrates the BM25 length
// normalization term; callers without a corpus-wide average may pass 0,
// which disables length normalization (b term drops out).
func New(avgDocLength float64) *Embedder {
	return &Embedder{avgDocLength: avgDocLength}
}

var _ providers.SparseEmbedder = (*Embedder)(nil)

func (e *Embedder) EmbedSparse(ctx context.Context, texts []string) ([]map[uint32]float32, error) {
	out := make([]map[uint32]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) vector(text string) map[uint32]float32 {
	terms := tokenize(text)
	if len(terms) == 0 {
		return map[uint32]float32{}
	}

	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}

	docLength := float64(len(terms))
	norm := 1.0
	if e.avgDocLength > 0 {
		norm = 1 - b + b*(docLength/e.avgDocLength)
	}

	vec := make(map[uint32]float32, len(counts))
	for term, tf := range counts {
		saturated := (float64(tf) * (k1 + 1)) / (float64(tf) + k1*norm)
		vec[termIndex(term)] = float32(saturated)
	}
	return vec
}

// termIndex hashes a token into the fixed sparse index space Milvus's and
// Qdrant's sparse vector fields expect (uint32 key).
func termIndex(term string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(term))
	return h.Sum32()
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}
