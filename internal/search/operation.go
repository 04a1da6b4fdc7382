package search

import "context"

// Operation is one stage of the Search Pipeline's fixed graph. Unlike the
// workflow engine's Noder (§4.1's nearest analogue), a search Operation
// never branches or fans out — the graph's shape is decided once, at
// build time, by Factory.Build — so Run only ever needs to mutate State
// and report an error.
type Operation interface {
	// Name identifies the operation for event emission ("query_expansion",
	// "retrieval", ...) and must be stable across releases since clients
	// key off it.
	Name() string
	Run(ctx context.Context, st *State) error
}
