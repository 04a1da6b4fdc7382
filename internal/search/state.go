package search

import (
	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

// State is the scratch space one search request's operations read from and
// write to as they run. Retrieval and FederatedSearch are the only
// operations that execute concurrently, and each writes only its own
// field (VectorHits, FederatedHits); the pipeline's errgroup.Wait() is the
// happens-before barrier, so no additional locking is needed here.
type State struct {
	Request    Request
	Collection core.Collection

	VectorBacked []core.SourceConnection
	Federated    []core.SourceConnection

	// Populated by QueryExpansion. QueryVariants[0] is always the verbatim
	// primary query.
	QueryVariants []string

	// Populated by QueryInterpretation and/or UserFilter; merged by AND.
	Filter map[string]any

	// Populated by EmbedQuery. DenseVectors[i] pairs with QueryVariants[i];
	// SparseVector is only ever computed for the primary query.
	DenseVectors [][]float32
	SparseVector map[uint32]float32

	// Populated by TemporalRelevance.
	Decay *vectorstore.DecayConfig

	// Populated by Retrieval.
	VectorHits []Result

	// Populated by FederatedSearch.
	FederatedHits []Result

	// Populated by the merge step that always runs after the parallel
	// phase, regardless of which of Retrieval/FederatedSearch were
	// included.
	Merged []Result

	// Populated by Reranking, if included; otherwise Merged is carried
	// through unchanged.
	Reranked []Result

	// Populated by GenerateAnswer.
	Answer    string
	Citations []string
}

// Results returns the best available ranked result set: Reranked if the
// Reranking operation ran, else Merged.
func (s *State) Results() []Result {
	if s.Reranked != nil {
		return s.Reranked
	}
	return s.Merged
}
