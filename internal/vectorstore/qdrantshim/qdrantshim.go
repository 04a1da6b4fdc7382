// Package qdrantshim adapts internal/vectorstore.Store to Qdrant over its
// REST wire protocol. It is the default destination (internal/vectorstore/milvus
// is used only when vector_store.backend is "milvus"; the choice applies to
// every Collection in the process), and it is wired the same way: named
// dense ("default") and sparse ("bm25") vectors per point, payload as a
// flat JSON object, and the same client-side decay/fusion emulation every
// other Store implementation uses.
package qdrantshim

import (
	"context"
	"fmt"
	"strings"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/sources/httpx"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

// Store adapts vectorstore.Store to Qdrant's HTTP API.
type Store struct {
	client *httpx.Client
}

// New builds a Store talking to a Qdrant instance at baseURL, authenticating
// with apiKey (sent as an "Authorization: Bearer" header via a static token
// getter passed to httpx).
func New(baseURL, apiKey string) (*Store, error) {
	c, err := httpx.New(httpx.Config{BaseURL: baseURL}, apiKeyGetter(apiKey))
	if err != nil {
		return nil, fmt.Errorf("qdrantshim: build client: %w", err)
	}
	return &Store{client: c}, nil
}

var _ vectorstore.Store = (*Store)(nil)

type apiKeyGetter string

func (k apiKeyGetter) Token(ctx context.Context) (string, error) { return string(k), nil }
func (k apiKeyGetter) RefreshOnUnauthorized(ctx context.Context) (string, error) {
	return string(k), nil
}

type vectorParams struct {
	Size     int    `json:"size,omitempty"`
	Distance string `json:"distance,omitempty"`
}

type sparseVectorParams struct{}

type createCollectionRequest struct {
	Vectors       map[string]vectorParams       `json:"vectors"`
	SparseVectors map[string]sparseVectorParams `json:"sparse_vectors"`
}

func (s *Store) SetupCollection(ctx context.Context, collectionID string, vectorSize int) error {
	req := createCollectionRequest{
		Vectors: map[string]vectorParams{
			"default": {Size: vectorSize, Distance: "Cosine"},
		},
		SparseVectors: map[string]sparseVectorParams{
			"bm25": {},
		},
	}
	err := s.client.JSON(ctx, "PUT", "/collections/"+collectionID, req, nil)
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("qdrantshim: create collection %s: %w", collectionID, err)
	}
	return nil
}

type sparseVectorValue struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

type pointStruct struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type upsertPointsRequest struct {
	Points []pointStruct `json:"points"`
}

func (s *Store) Upsert(ctx context.Context, collectionID string, points []core.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]pointStruct, len(points))
	for i, p := range points {
		vec := map[string]any{"default": p.DenseVector}
		if len(p.SparseVector) > 0 {
			vec["bm25"] = toSparseVectorValue(p.SparseVector)
		}
		structs[i] = pointStruct{ID: p.ID, Vector: vec, Payload: p.Payload}
	}

	req := upsertPointsRequest{Points: structs}
	if err := s.client.JSON(ctx, "PUT", "/collections/"+collectionID+"/points?wait=true", req, nil); err != nil {
		return fmt.Errorf("qdrantshim: upsert into %s: %w", collectionID, err)
	}
	return nil
}

type filterCondition struct {
	Key   string `json:"key"`
	Match any    `json:"match"`
}

type matchValue struct {
	Value string `json:"value,omitempty"`
	Any   []string `json:"any,omitempty"`
}

type pointsFilter struct {
	Must []filterCondition `json:"must"`
}

type deleteByFilterRequest struct {
	Filter pointsFilter `json:"filter"`
}

func (s *Store) DeleteByDBEntityID(ctx context.Context, collectionID, dbEntityID string) error {
	return s.deleteByFilter(ctx, collectionID, filterCondition{Key: "db_entity_id", Match: matchValue{Value: dbEntityID}})
}

func (s *Store) DeleteBySyncID(ctx context.Context, collectionID, syncID string) error {
	return s.deleteByFilter(ctx, collectionID, filterCondition{Key: "sync_id", Match: matchValue{Value: syncID}})
}

func (s *Store) BulkDelete(ctx context.Context, collectionID, syncID string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	return s.deleteByFilter(ctx, collectionID,
		filterCondition{Key: "sync_id", Match: matchValue{Value: syncID}},
		filterCondition{Key: "entity_id", Match: matchValue{Any: entityIDs}},
	)
}

func (s *Store) BulkDeleteByParentIDs(ctx context.Context, collectionID, syncID string, parentIDs []string) error {
	if len(parentIDs) == 0 {
		return nil
	}
	return s.deleteByFilter(ctx, collectionID,
		filterCondition{Key: "sync_id", Match: matchValue{Value: syncID}},
		filterCondition{Key: "breadcrumbs", Match: matchValue{Any: parentIDs}},
	)
}

func (s *Store) deleteByFilter(ctx context.Context, collectionID string, conds ...filterCondition) error {
	req := deleteByFilterRequest{Filter: pointsFilter{Must: conds}}
	if err := s.client.JSON(ctx, "POST", "/collections/"+collectionID+"/points/delete", req, nil); err != nil {
		return fmt.Errorf("qdrantshim: delete from %s: %w", collectionID, err)
	}
	return nil
}

type searchRequestWire struct {
	Vector      any      `json:"vector"`
	Using       string   `json:"using"`
	Limit       int      `json:"limit"`
	Offset      int      `json:"offset,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
	WithPayload bool     `json:"with_payload"`
}

type scoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type searchResponse struct {
	Result []scoredPoint `json:"result"`
}

func (s *Store) Search(ctx context.Context, collectionID string, requests []vectorstore.SearchRequest) ([][]vectorstore.Hit, error) {
	results := make([][]vectorstore.Hit, len(requests))
	for i, req := range requests {
		hits, err := s.searchOne(ctx, collectionID, req)
		if err != nil {
			return nil, fmt.Errorf("qdrantshim: search request %d: %w", i, err)
		}
		results[i] = hits
	}
	return results, nil
}

func (s *Store) searchOne(ctx context.Context, collectionID string, req vectorstore.SearchRequest) ([]vectorstore.Hit, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	switch req.Method {
	case vectorstore.SearchKeyword:
		return s.searchVector(ctx, collectionID, "bm25", toSparseVectorValue(req.SparseVector), limit, req)
	case vectorstore.SearchHybrid:
		dense, err := s.searchVector(ctx, collectionID, "default", req.DenseVector, limit, req)
		if err != nil {
			return nil, err
		}
		sparse, err := s.searchVector(ctx, collectionID, "bm25", toSparseVectorValue(req.SparseVector), limit, req)
		if err != nil {
			return nil, err
		}
		return vectorstore.FuseHybrid(dense, sparse), nil
	default:
		return s.searchVector(ctx, collectionID, "default", req.DenseVector, limit, req)
	}
}

func (s *Store) searchVector(ctx context.Context, collectionID, using string, vec any, limit int, req vectorstore.SearchRequest) ([]vectorstore.Hit, error) {
	wire := searchRequestWire{
		Vector:         vec,
		Using:          using,
		Limit:          limit,
		Offset:         req.Offset,
		ScoreThreshold: req.ScoreThreshold,
		WithPayload:    true,
	}

	var resp searchResponse
	if err := s.client.JSON(ctx, "POST", "/collections/"+collectionID+"/points/search", wire, &resp); err != nil {
		return nil, err
	}

	hits := make([]vectorstore.Hit, len(resp.Result))
	for i, p := range resp.Result {
		hits[i] = vectorstore.Hit{ID: p.ID, Score: p.Score, Payload: p.Payload}
	}
	return hits, nil
}

func toSparseVectorValue(sparse map[uint32]float32) sparseVectorValue {
	idx := make([]uint32, 0, len(sparse))
	vals := make([]float32, 0, len(sparse))
	for k, v := range sparse {
		idx = append(idx, k)
		vals = append(vals, v)
	}
	return sparseVectorValue{Indices: idx, Values: vals}
}

func isAlreadyExists(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "409"))
}
