// Package milvus adapts internal/vectorstore.Store to Milvus, the hybrid
// dense+sparse vector database the teacher's go.mod already depends on.
// Each Collection gets its own Milvus collection (no partition key — one
// collection per tenant Collection mirrors spec.md's model exactly), with
// a "default" dense field (COSINE) and a "bm25" sparse field (IP over the
// sparse vectors the caller supplies) plus a dynamic JSON payload field.
package milvus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

const (
	fieldID      = "id"
	fieldDense   = "default"
	fieldSparse  = "bm25"
	fieldPayload = "payload"
)

// Store adapts vectorstore.Store to Milvus.
type Store struct {
	cli client.Client
}

// New dials Milvus at addr (e.g. "localhost:19530").
func New(ctx context.Context, addr string) (*Store, error) {
	cli, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("milvus: dial %s: %w", addr, err)
	}
	return &Store{cli: cli}, nil
}

var _ vectorstore.Store = (*Store)(nil)

func (s *Store) SetupCollection(ctx context.Context, collectionID string, vectorSize int) error {
	has, err := s.cli.HasCollection(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("milvus: has collection %s: %w", collectionID, err)
	}
	if has {
		return s.cli.LoadCollection(ctx, collectionID, false)
	}

	schema := entity.NewSchema().
		WithName(collectionID).
		WithDynamicFieldEnabled(true).
		WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(64)).
		WithField(entity.NewField().WithName(fieldDense).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(vectorSize))).
		WithField(entity.NewField().WithName(fieldSparse).WithDataType(entity.FieldTypeSparseVector)).
		WithField(entity.NewField().WithName(fieldPayload).WithDataType(entity.FieldTypeJSON))

	if err := s.cli.CreateCollection(ctx, schema, 1); err != nil {
		return fmt.Errorf("milvus: create collection %s: %w", collectionID, err)
	}

	denseIdx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
	if err != nil {
		return fmt.Errorf("milvus: build dense index: %w", err)
	}
	if err := s.cli.CreateIndex(ctx, collectionID, fieldDense, denseIdx, false); err != nil {
		return fmt.Errorf("milvus: create dense index: %w", err)
	}

	sparseIdx, err := entity.NewIndexSparseInverted(entity.IP, 0.2)
	if err != nil {
		return fmt.Errorf("milvus: build sparse index: %w", err)
	}
	if err := s.cli.CreateIndex(ctx, collectionID, fieldSparse, sparseIdx, false); err != nil {
		return fmt.Errorf("milvus: create sparse index: %w", err)
	}

	return s.cli.LoadCollection(ctx, collectionID, false)
}

func (s *Store) Upsert(ctx context.Context, collectionID string, points []core.Point) error {
	if len(points) == 0 {
		return nil
	}

	ids := make([]string, len(points))
	dense := make([][]float32, len(points))
	sparse := make([]entity.SparseEmbedding, len(points))
	payloads := make([][]byte, len(points))

	for i, p := range points {
		if len(p.DenseVector) == 0 {
			return fmt.Errorf("milvus: point %s has no dense vector", p.ID)
		}
		ids[i] = p.ID
		dense[i] = p.DenseVector

		se, err := entity.NewSliceSparseEmbedding(sparseIndices(p.SparseVector), sparseValues(p.SparseVector))
		if err != nil {
			return fmt.Errorf("milvus: encode sparse vector for point %s: %w", p.ID, err)
		}
		sparse[i] = se

		payloads[i] = marshalPayload(p.Payload)
	}

	idCol := entity.NewColumnVarChar(fieldID, ids)
	denseCol := entity.NewColumnFloatVector(fieldDense, len(dense[0]), dense)
	sparseCol := entity.NewColumnSparseVector(fieldSparse, sparse)
	payloadCol := entity.NewColumnJSONBytes(fieldPayload, payloads)

	if _, err := s.cli.Upsert(ctx, collectionID, "", idCol, denseCol, sparseCol, payloadCol); err != nil {
		return fmt.Errorf("milvus: upsert into %s: %w", collectionID, err)
	}
	return s.cli.Flush(ctx, collectionID, false)
}

func (s *Store) DeleteByDBEntityID(ctx context.Context, collectionID, dbEntityID string) error {
	expr := fmt.Sprintf("payload[\"db_entity_id\"] == %q", dbEntityID)
	return s.cli.Delete(ctx, collectionID, "", expr)
}

func (s *Store) DeleteBySyncID(ctx context.Context, collectionID, syncID string) error {
	expr := fmt.Sprintf("payload[\"sync_id\"] == %q", syncID)
	return s.cli.Delete(ctx, collectionID, "", expr)
}

func (s *Store) BulkDelete(ctx context.Context, collectionID, syncID string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	expr := fmt.Sprintf("payload[\"sync_id\"] == %q && payload[\"entity_id\"] in %s", syncID, quotedList(entityIDs))
	return s.cli.Delete(ctx, collectionID, "", expr)
}

func (s *Store) BulkDeleteByParentIDs(ctx context.Context, collectionID, syncID string, parentIDs []string) error {
	if len(parentIDs) == 0 {
		return nil
	}
	expr := fmt.Sprintf("payload[\"sync_id\"] == %q && json_contains_any(payload[\"breadcrumbs\"], %s)", syncID, quotedList(parentIDs))
	return s.cli.Delete(ctx, collectionID, "", expr)
}

func (s *Store) Search(ctx context.Context, collectionID string, requests []vectorstore.SearchRequest) ([][]vectorstore.Hit, error) {
	results := make([][]vectorstore.Hit, len(requests))
	for i, req := range requests {
		hits, err := s.searchOne(ctx, collectionID, req)
		if err != nil {
			return nil, fmt.Errorf("milvus: search request %d: %w", i, err)
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
		return s.searchSparse(ctx, collectionID, req, limit)
	case vectorstore.SearchHybrid:
		dense, err := s.searchDense(ctx, collectionID, req, limit)
		if err != nil {
			return nil, err
		}
		sparse, err := s.searchSparse(ctx, collectionID, req, limit)
		if err != nil {
			return nil, err
		}
		// Milvus's own HybridSearch+reranker path isn't exercised here;
		// RRF fusion and decay are applied client-side uniformly across
		// every destination (see internal/vectorstore/decay.go), so the
		// independent dense and sparse prefetches above are fused the
		// same way every other backend's hybrid path is.
		return vectorstore.FuseHybrid(dense, sparse), nil
	default:
		return s.searchDense(ctx, collectionID, req, limit)
	}
}

func (s *Store) searchDense(ctx context.Context, collectionID string, req vectorstore.SearchRequest, limit int) ([]vectorstore.Hit, error) {
	sp, _ := entity.NewIndexAUTOINDEXSearchParam(1)
	vec := entity.FloatVector(req.DenseVector)
	res, err := s.cli.Search(ctx, collectionID, nil, "", []string{fieldPayload}, []entity.Vector{vec}, fieldDense, entity.COSINE, limit, sp, client.WithOffset(int64(req.Offset)))
	if err != nil {
		return nil, err
	}
	return resultSetToHits(res), nil
}

func (s *Store) searchSparse(ctx context.Context, collectionID string, req vectorstore.SearchRequest, limit int) ([]vectorstore.Hit, error) {
	sp, _ := entity.NewIndexSparseInvertedSearchParam(0.2)
	sv, err := entity.NewSliceSparseEmbedding(sparseIndices(req.SparseVector), sparseValues(req.SparseVector))
	if err != nil {
		return nil, err
	}
	res, err := s.cli.Search(ctx, collectionID, nil, "", []string{fieldPayload}, []entity.Vector{sv}, fieldSparse, entity.IP, limit, sp, client.WithOffset(int64(req.Offset)))
	if err != nil {
		return nil, err
	}
	return resultSetToHits(res), nil
}

func resultSetToHits(res []client.SearchResult) []vectorstore.Hit {
	var hits []vectorstore.Hit
	for _, r := range res {
		idCol, ok := r.IDs.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		payloads := extractPayloads(r.Fields)
		for i, id := range idCol.Data() {
			if i >= len(r.Scores) {
				break
			}
			hit := vectorstore.Hit{ID: id, Score: float64(r.Scores[i])}
			if i < len(payloads) {
				hit.Payload = payloads[i]
			}
			hits = append(hits, hit)
		}
	}
	return hits
}

// extractPayloads decodes the dynamic JSON payload column requested via
// outputFields into one map[string]any per row, in row order, so
// Retrieval can recover entity_id/source_name/updated_at straight from
// the search response instead of a second round trip to fetch payloads.
func extractPayloads(fields []entity.Column) []map[string]any {
	for _, f := range fields {
		if f.Name() != fieldPayload {
			continue
		}
		col, ok := f.(*entity.ColumnJSONBytes)
		if !ok {
			return nil
		}
		raw := col.Data()
		out := make([]map[string]any, len(raw))
		for i, b := range raw {
			var m map[string]any
			if err := json.Unmarshal(b, &m); err == nil {
				out[i] = m
			}
		}
		return out
	}
	return nil
}
