package search

import (
	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

// Request is a caller's search query against one Collection, per spec.md
// §4.10's request shape. Factory.Build validates it as given (see Validate)
// and fills in no defaults, so an unset Limit is rejected.
type Request struct {
	Query             string
	RetrievalStrategy vectorstore.SearchMethod
	Offset            int
	Limit             int
	Filter            map[string]any
	ExpandQuery       bool
	InterpretFilters  bool
	Rerank            bool
	GenerateAnswer    bool
	TemporalRelevance float64
	Stream            bool
}

// Validate checks the request shape the way Factory.Build must before
// inspecting the Collection: empty query, negative offset, non-positive
// limit, and an out-of-range decay weight are all 422-class.
func (r Request) Validate() error {
	fields := map[string]string{}

	if r.Query == "" {
		fields["query"] = "query must not be empty"
	}
	if r.Offset < 0 {
		fields["offset"] = "offset must be >= 0"
	}
	if r.Limit < 1 {
		fields["limit"] = "limit must be >= 1"
	}
	if r.TemporalRelevance < 0 || r.TemporalRelevance > 1 {
		fields["temporal_relevance"] = "temporal_relevance must be in [0, 1]"
	}

	if len(fields) == 0 {
		return nil
	}
	return errkind.New(errkind.Validation, "invalid_search_request", "search request failed validation").WithFields(fields)
}

// Result is one cleaned, ranked hit returned to the caller — vector-backed
// or federated, indistinguishable once merged.
type Result struct {
	EntityID string
	Score    float64
	Source   string // registry short name the hit came from
	Payload  map[string]any
}

// Response is the final shape returned for a non-streaming request, or
// assembled internally before being split into SSE events for a streaming
// one.
type Response struct {
	Results   []Result
	Answer    string
	Citations []string
}
