// Package vectorstore implements the Vector Store Adapter (C6): the sole
// abstraction over the destination vector database. Collections carry a
// dense "default" vector plus a sparse "bm25" vector; point identity is a
// UUIDv5 derived from the entity's db_entity_id (used as the UUID
// namespace) and its entity_id (the UUIDv5 name), stable across
// re-embeddings of the same logical entity.
package vectorstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/airweave-core/airweave-core/internal/core"
)

// SearchMethod selects which vector(s) a query is matched against.
type SearchMethod string

const (
	SearchNeural  SearchMethod = "neural"
	SearchKeyword SearchMethod = "keyword"
	SearchHybrid  SearchMethod = "hybrid"
)

// DecayType names the temporal-relevance curve applied to a query.
type DecayType string

const (
	DecayLinear      DecayType = "linear"
	DecayExponential DecayType = "exponential"
	DecayGaussian    DecayType = "gaussian"
)

// DecayConfig parameterizes temporal-relevance scoring. Weight must be in
// [0, 1]; Weight == 0 leaves scores unchanged, Weight == 1 replaces the
// score with the decay expression alone.
type DecayConfig struct {
	Type           DecayType
	DatetimeField  string
	TargetDatetime int64 // unix seconds
	ScaleSeconds   int64
	Midpoint       float64
	Weight         float64
}

// SearchRequest is one query against bulk_search's query_vectors slice.
type SearchRequest struct {
	DenseVector     []float32
	SparseVector    map[uint32]float32
	Limit           int
	Offset          int
	ScoreThreshold  *float64
	FilterEntityIDs []string // payload filter: entity_id IN (...)
	FilterSyncID    string
	Method          SearchMethod
	Decay           *DecayConfig
}

// Hit is one scored result from bulk_search.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the destination-agnostic contract every vector backend
// implements. Store implementations never see raw entities — the Sync
// Runner and Search Pipeline convert to/from core.Point at the boundary.
type Store interface {
	// SetupCollection idempotently creates a collection named after
	// collectionID with a dense "default" vector (cosine, size
	// vectorSize) and a sparse "bm25" vector.
	SetupCollection(ctx context.Context, collectionID string, vectorSize int) error

	// Upsert writes points, overwriting any existing point with the same
	// ID. Every point must carry a dense vector.
	Upsert(ctx context.Context, collectionID string, points []core.Point) error

	// DeleteByDBEntityID deletes every point whose payload's db_entity_id
	// matches id.
	DeleteByDBEntityID(ctx context.Context, collectionID, dbEntityID string) error

	// DeleteBySyncID deletes every point belonging to syncID — used on
	// Source Connection deletion or a full resync.
	DeleteBySyncID(ctx context.Context, collectionID, syncID string) error

	// BulkDelete deletes points by entity_id, scoped to one sync.
	BulkDelete(ctx context.Context, collectionID, syncID string, entityIDs []string) error

	// BulkDeleteByParentIDs deletes points whose breadcrumbs include any
	// of parentIDs, scoped to one sync — used when a parent entity (e.g.
	// a Confluence page) disappears and its children must go with it.
	BulkDeleteByParentIDs(ctx context.Context, collectionID, syncID string, parentIDs []string) error

	// Search runs one or more queries and returns one ranked Hit slice
	// per request, in request order.
	Search(ctx context.Context, collectionID string, requests []SearchRequest) ([][]Hit, error)
}

// PointID computes the deterministic UUIDv5 point identity: namespace =
// dbEntityID (itself a UUID string minted when the entity's DB row was
// created), name = entityID.
func PointID(dbEntityID, entityID string) (string, error) {
	ns, err := uuid.Parse(dbEntityID)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(ns, []byte(entityID)).String(), nil
}
