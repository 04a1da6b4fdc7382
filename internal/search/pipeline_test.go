package search

import (
	"context"
	"testing"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/events"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

func TestPipelineRunsRetrievalAndFederatedConcurrentlyAndMerges(t *testing.T) {
	vs := &fakeVectorStore{hits: [][]vectorstore.Hit{
		{{ID: "p1", Score: 0.8, Payload: map[string]any{"entity_id": "e1", "name": "doc"}}},
	}}
	fed := &federatedSearchOp{sources: []federatedSource{{
		connection: core.SourceConnection{ShortName: "slack"},
		searcher:   &fakeFederatedSearcher{entities: []core.Entity{{EntityID: "m1", Name: "msg"}}},
	}}}

	emitter := events.New("req_1", 32)
	p := &Pipeline{
		pre:       []Operation{&embedQueryOp{embedder: &fakeEmbedder{dims: 3}}},
		retrieval: &retrievalOp{store: vs},
		federated: fed,
		emitter:   emitter,
	}
	st := &State{
		Request:    Request{Query: "q", Limit: 10},
		Collection: core.Collection{ID: "col_1"},
	}

	resp, err := p.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2 (one vector hit + one federated hit)", len(resp.Results))
	}
}

func TestPipelinePropagatesOperationFailure(t *testing.T) {
	p := &Pipeline{
		pre:     []Operation{&queryExpansionOp{llm: &fakeLLM{err: context.DeadlineExceeded}}},
		emitter: events.New("req_1", 8),
	}
	st := &State{Request: Request{Query: "q", Limit: 10}}

	_, err := p.Run(context.Background(), st)
	if err == nil {
		t.Fatal("Run() error = nil, want the operation's failure propagated")
	}
}

func TestPipelineCarriesMergedThroughWhenRerankingNotIncluded(t *testing.T) {
	vs := &fakeVectorStore{hits: [][]vectorstore.Hit{
		{{ID: "p1", Score: 0.8, Payload: map[string]any{"entity_id": "e1"}}},
	}}
	p := &Pipeline{
		retrieval: &retrievalOp{store: vs},
		emitter:   events.New("req_1", 8),
	}
	st := &State{Request: Request{Query: "q", Limit: 10}, Collection: core.Collection{ID: "col_1"}, DenseVectors: [][]float32{{1}}}

	resp, err := p.Run(context.Background(), st)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(resp.Results))
	}
}
