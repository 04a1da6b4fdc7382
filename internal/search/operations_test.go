package search

import (
	"context"
	"testing"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/providers"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	return f.reply, f.err
}

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

type fakeSparseEmbedder struct{}

func (fakeSparseEmbedder) EmbedSparse(ctx context.Context, texts []string) ([]map[uint32]float32, error) {
	out := make([]map[uint32]float32, len(texts))
	for i := range texts {
		out[i] = map[uint32]float32{1: 0.5}
	}
	return out, nil
}

type fakeVectorStore struct {
	hits [][]vectorstore.Hit
}

func (f *fakeVectorStore) SetupCollection(ctx context.Context, collectionID string, vectorSize int) error {
	return nil
}
func (f *fakeVectorStore) Upsert(ctx context.Context, collectionID string, points []core.Point) error {
	return nil
}
func (f *fakeVectorStore) DeleteByDBEntityID(ctx context.Context, collectionID, dbEntityID string) error {
	return nil
}
func (f *fakeVectorStore) DeleteBySyncID(ctx context.Context, collectionID, syncID string) error {
	return nil
}
func (f *fakeVectorStore) BulkDelete(ctx context.Context, collectionID, syncID string, entityIDs []string) error {
	return nil
}
func (f *fakeVectorStore) BulkDeleteByParentIDs(ctx context.Context, collectionID, syncID string, parentIDs []string) error {
	return nil
}
func (f *fakeVectorStore) Search(ctx context.Context, collectionID string, requests []vectorstore.SearchRequest) ([][]vectorstore.Hit, error) {
	out := make([][]vectorstore.Hit, len(requests))
	for i := range requests {
		if i < len(f.hits) {
			out[i] = f.hits[i]
		}
	}
	return out, nil
}

type fakeFederatedSearcher struct {
	entities []core.Entity
}

func (f *fakeFederatedSearcher) Search(ctx context.Context, query string, limit int) ([]core.Entity, error) {
	return f.entities, nil
}

type fakeReranker struct{}

func (fakeReranker) Rerank(ctx context.Context, query string, candidates []providers.RerankCandidate) ([]providers.RerankResult, error) {
	out := make([]providers.RerankResult, len(candidates))
	for i, c := range candidates {
		out[i] = providers.RerankResult{ID: c.ID, Score: float64(len(candidates) - i)}
	}
	return out, nil
}

func TestQueryExpansionPreservesPrimaryAndAddsParaphrases(t *testing.T) {
	op := &queryExpansionOp{llm: &fakeLLM{reply: "alt one\nalt two\n"}}
	st := &State{Request: Request{Query: "original query"}}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if st.QueryVariants[0] != "original query" {
		t.Errorf("QueryVariants[0] = %q, want verbatim primary query", st.QueryVariants[0])
	}
	if len(st.QueryVariants) != 3 {
		t.Fatalf("len(QueryVariants) = %d, want 3", len(st.QueryVariants))
	}
}

func TestQueryInterpretationMergesIntoFilter(t *testing.T) {
	op := &queryInterpretationOp{llm: &fakeLLM{reply: `{"source_name": "notion"}`}}
	st := &State{Request: Request{Query: "q"}}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if st.Filter["source_name"] != "notion" {
		t.Errorf("Filter = %+v, want source_name=notion", st.Filter)
	}
}

func TestQueryInterpretationToleratesMalformedJSON(t *testing.T) {
	op := &queryInterpretationOp{llm: &fakeLLM{reply: "not json"}}
	st := &State{Request: Request{Query: "q"}}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v, want nil (degrade gracefully)", err)
	}
	if st.Filter != nil {
		t.Errorf("Filter = %+v, want nil", st.Filter)
	}
}

func TestUserFilterMergesCallerFilter(t *testing.T) {
	op := &userFilterOp{}
	st := &State{
		Request: Request{Filter: map[string]any{"entity_type": "page"}},
		Filter:  map[string]any{"source_name": "notion"},
	}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	and, ok := st.Filter["and"].([]map[string]any)
	if !ok || len(and) != 2 {
		t.Fatalf("Filter = %+v, want an AND of both filters", st.Filter)
	}
}

func TestEmbedQueryEmbedsEveryVariant(t *testing.T) {
	op := &embedQueryOp{embedder: &fakeEmbedder{dims: 4}, sparseEmbedder: fakeSparseEmbedder{}}
	st := &State{
		Request:       Request{Query: "q", RetrievalStrategy: vectorstore.SearchHybrid},
		QueryVariants: []string{"q", "q paraphrase"},
	}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(st.DenseVectors) != 2 {
		t.Fatalf("len(DenseVectors) = %d, want 2", len(st.DenseVectors))
	}
	if st.SparseVector == nil {
		t.Error("SparseVector not populated for hybrid strategy")
	}
}

func TestEmbedQuerySkipsSparseForNeuralStrategy(t *testing.T) {
	op := &embedQueryOp{embedder: &fakeEmbedder{dims: 4}, sparseEmbedder: fakeSparseEmbedder{}}
	st := &State{Request: Request{Query: "q", RetrievalStrategy: vectorstore.SearchNeural}}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if st.SparseVector != nil {
		t.Error("SparseVector populated for a neural-only strategy")
	}
}

func TestRetrievalMergesHighestScorePerEntityAndAppliesOffsetLimit(t *testing.T) {
	store := &fakeVectorStore{hits: [][]vectorstore.Hit{
		{
			{ID: "p1", Score: 0.5, Payload: map[string]any{"entity_id": "e1"}},
			{ID: "p2", Score: 0.9, Payload: map[string]any{"entity_id": "e2"}},
		},
		{
			{ID: "p1", Score: 0.95, Payload: map[string]any{"entity_id": "e1"}}, // higher than variant 0's hit
		},
	}}
	op := &retrievalOp{store: store}
	st := &State{
		Collection:   core.Collection{ID: "col_1"},
		Request:      Request{Limit: 1, Offset: 0},
		DenseVectors: [][]float32{{1}, {2}},
	}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(st.VectorHits) != 1 {
		t.Fatalf("len(VectorHits) = %d, want 1", len(st.VectorHits))
	}
	if st.VectorHits[0].EntityID != "e1" || st.VectorHits[0].Score != 0.95 {
		t.Errorf("VectorHits[0] = %+v, want e1 with the higher of its two scores", st.VectorHits[0])
	}
}

func TestRetrievalScopesDecayToSourcesThatDeclareSupport(t *testing.T) {
	store := &fakeVectorStore{hits: [][]vectorstore.Hit{
		{
			{ID: "p1", Score: 1.0, Payload: map[string]any{"entity_id": "e1", "source_name": "notion", "updated_at": int64(0)}},
			{ID: "p2", Score: 1.0, Payload: map[string]any{"entity_id": "e2", "source_name": "slack", "updated_at": int64(0)}},
		},
	}}
	op := &retrievalOp{store: store, decayableSources: map[string]bool{"notion": true}}
	st := &State{
		Collection:   core.Collection{ID: "col_1"},
		Request:      Request{Limit: 10, Offset: 0},
		DenseVectors: [][]float32{{1}},
		Decay: &vectorstore.DecayConfig{
			Type: vectorstore.DecayExponential, DatetimeField: "updated_at",
			TargetDatetime: 1_000_000, ScaleSeconds: 100, Midpoint: 0.5, Weight: 1,
		},
	}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	byEntity := make(map[string]Result, len(st.VectorHits))
	for _, r := range st.VectorHits {
		byEntity[r.EntityID] = r
	}

	// e1 (notion, decayable) is far from target_datetime, so full-weight
	// decay should crush its score toward 0.
	if byEntity["e1"].Score >= 0.5 {
		t.Errorf("e1 (decayable source) score = %v, want heavily decayed", byEntity["e1"].Score)
	}
	// e2 (slack, not decayable) keeps its original score untouched.
	if byEntity["e2"].Score != 1.0 {
		t.Errorf("e2 (non-decayable source) score = %v, want 1.0 unchanged", byEntity["e2"].Score)
	}
}

func TestFederatedSearchTagsHitsWithSourceAndDescendingSyntheticScore(t *testing.T) {
	op := &federatedSearchOp{
		sources: []federatedSource{{
			connection: core.SourceConnection{ShortName: "slack"},
			searcher: &fakeFederatedSearcher{entities: []core.Entity{
				{EntityID: "m1", Name: "first"},
				{EntityID: "m2", Name: "second"},
			}},
		}},
	}
	st := &State{Request: Request{Query: "q", Limit: 10}}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(st.FederatedHits) != 2 {
		t.Fatalf("len(FederatedHits) = %d, want 2", len(st.FederatedHits))
	}
	if st.FederatedHits[0].Score <= st.FederatedHits[1].Score {
		t.Errorf("expected rank-derived scores to be descending, got %+v", st.FederatedHits)
	}
	for _, hit := range st.FederatedHits {
		if hit.Source != "slack" {
			t.Errorf("Source = %q, want slack", hit.Source)
		}
	}
}

func TestRerankingReordersAndTruncates(t *testing.T) {
	op := &rerankingOp{reranker: fakeReranker{}}
	st := &State{
		Request: Request{Query: "q", Limit: 1},
		Merged: []Result{
			{EntityID: "a", Payload: map[string]any{"name": "a"}},
			{EntityID: "b", Payload: map[string]any{"name": "b"}},
		},
	}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(st.Reranked) != 1 {
		t.Fatalf("len(Reranked) = %d, want 1 (truncated to Limit)", len(st.Reranked))
	}
}

func TestGenerateAnswerCollectsCitations(t *testing.T) {
	op := &generateAnswerOp{llm: &fakeLLM{reply: "the answer"}}
	st := &State{
		Request: Request{Query: "q"},
		Merged: []Result{
			{EntityID: "e1", Payload: map[string]any{"name": "doc 1"}},
			{EntityID: "e2", Payload: map[string]any{"name": "doc 2"}},
		},
	}

	if err := op.Run(context.Background(), st); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if st.Answer != "the answer" {
		t.Errorf("Answer = %q, want %q", st.Answer, "the answer")
	}
	if len(st.Citations) != 2 {
		t.Fatalf("len(Citations) = %d, want 2", len(st.Citations))
	}
}

func TestMergeFiltersCombinesUnderAndKeyWhenBothPresent(t *testing.T) {
	merged := mergeFilters(map[string]any{"a": 1}, map[string]any{"b": 2})

	and, ok := merged["and"].([]map[string]any)
	if !ok || len(and) != 2 {
		t.Fatalf("merged = %+v, want and-composite of both", merged)
	}
}

func TestMergeFiltersReturnsSoleFilterUnwrapped(t *testing.T) {
	merged := mergeFilters(nil, map[string]any{"a": 1})

	if merged["a"] != 1 {
		t.Errorf("merged = %+v, want the single present filter unwrapped", merged)
	}
	if _, ok := merged["and"]; ok {
		t.Error("single filter should not be wrapped in an and-composite")
	}
}

func TestParseFilterJSONStripsCodeFence(t *testing.T) {
	filter, err := parseFilterJSON("```json\n{\"source_name\": \"slack\"}\n```")
	if err != nil {
		t.Fatalf("parseFilterJSON() error = %v", err)
	}
	if filter["source_name"] != "slack" {
		t.Errorf("filter = %+v, want source_name=slack", filter)
	}
}
