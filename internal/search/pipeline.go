package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/airweave-core/airweave-core/internal/events"
)

// Pipeline is one request's constructed operation graph: a sequential
// prefix (query shaping), a parallel phase (Retrieval and FederatedSearch,
// mutually independent per spec.md §5), a merge, and a sequential suffix
// (reranking, answer generation). Factory.Build decides which operations
// are present; a Pipeline built for a request with no vector-backed
// sources simply has a nil retrieval stage, and so on.
type Pipeline struct {
	pre       []Operation
	retrieval Operation
	federated Operation
	post      []Operation
	emitter   *events.Emitter
}

// Run executes the graph against st, emitting started/completed/failed
// events per operation as it goes, and returns the cleaned, ranked
// response. The caller owns st's initial fields (Request, Collection,
// VectorBacked, Federated) and closes the Emitter once Run returns.
func (p *Pipeline) Run(ctx context.Context, st *State) (*Response, error) {
	for _, op := range p.pre {
		if err := p.runOp(ctx, op, st); err != nil {
			return nil, err
		}
	}

	if p.retrieval != nil || p.federated != nil {
		g, gctx := errgroup.WithContext(ctx)
		if p.retrieval != nil {
			g.Go(func() error { return p.runOp(gctx, p.retrieval, st) })
		}
		if p.federated != nil {
			g.Go(func() error { return p.runOp(gctx, p.federated, st) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	st.Merged = mergeResults(st.VectorHits, st.FederatedHits)

	for _, op := range p.post {
		if err := p.runOp(ctx, op, st); err != nil {
			return nil, err
		}
	}

	results := CleanResults(st.Results())
	return &Response{
		Results:   results,
		Answer:    st.Answer,
		Citations: st.Citations,
	}, nil
}

func (p *Pipeline) runOp(ctx context.Context, op Operation, st *State) error {
	p.emitter.Started(op.Name(), nil)
	if err := op.Run(ctx, st); err != nil {
		p.emitter.Failed(op.Name(), map[string]string{"error": err.Error()})
		return fmt.Errorf("%s: %w", op.Name(), err)
	}
	p.emitter.Completed(op.Name(), nil)
	return nil
}
