package search

import (
	"context"
	"fmt"
	"time"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/credential"
	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/events"
	"github.com/airweave-core/airweave-core/internal/providers"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/store"
	"github.com/airweave-core/airweave-core/internal/token"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

// Collaborators are the dependencies Factory.Build shares across every
// request it builds a Pipeline for.
type Collaborators struct {
	Store       store.Store
	Registry    *registry.Registry
	Credentials *credential.Store
	Tokens      *token.Manager
	VectorStore vectorstore.Store

	Embedder       providers.Embedder
	SparseEmbedder providers.SparseEmbedder // nil: hybrid/keyword retrieval has no sparse component
	Reranker       providers.Reranker       // nil: `rerank` requests fail
	LLM            providers.LLM            // nil: `expand_query`/`interpret_filters`/`generate_answer`/federated-query-extraction are unavailable

	EventBufferSize int // per-request Emitter channel size; 0 uses the Emitter's own default
}

// Factory builds one Pipeline + initial State per search request,
// classifying the target Collection's Source Connections into federated
// and vector-backed and constructing only the operations the request and
// the collection's catalog actually need, per spec.md §4.10's inclusion
// table.
type Factory struct {
	c Collaborators
}

// NewFactory builds a Factory.
func NewFactory(c Collaborators) *Factory {
	return &Factory{c: c}
}

// Build validates req, classifies collectionReadableID's source
// connections, and constructs the operation graph. The returned Emitter
// is already wired into the Pipeline and must be closed by the caller
// once Run returns (and, for streaming requests, once the SSE writer has
// drained it).
func (f *Factory) Build(ctx context.Context, requestID string, req Request, collectionReadableID string) (*Pipeline, *State, *events.Emitter, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, nil, err
	}

	col, err := f.c.Store.GetCollection(ctx, collectionReadableID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load collection %s: %w", collectionReadableID, err)
	}
	if col == nil {
		return nil, nil, nil, errkind.New(errkind.NotFound, "collection_not_found", "collection %s not found", collectionReadableID)
	}

	conns, err := f.c.Store.ListSourceConnectionsByCollection(ctx, collectionReadableID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list source connections for %s: %w", collectionReadableID, err)
	}
	if len(conns) == 0 {
		return nil, nil, nil, errkind.New(errkind.Validation, "collection_has_no_sources", "collection %s has no source connections", collectionReadableID)
	}

	emitter := events.New(requestID, f.c.EventBufferSize)

	st := &State{
		Request:      req,
		Collection:   *col,
		VectorBacked: conns, // every source connection ingests into the vector store
	}

	var sourceNames []string
	var federatedSources []federatedSource
	for _, sc := range conns {
		sourceNames = append(sourceNames, sc.ShortName)

		entry, ok := f.c.Registry.Lookup(sc.ShortName)
		if !ok || !entry.SupportsFederatedSearch {
			continue
		}
		driver, err := f.buildDriver(ctx, entry, sc)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("build federated driver for %s: %w", sc.ID, err)
		}
		searcher, ok := driver.(sources.FederatedSearcher)
		if !ok {
			continue
		}
		st.Federated = append(st.Federated, sc)
		federatedSources = append(federatedSources, federatedSource{connection: sc, entry: entry, searcher: searcher})
	}

	p := &Pipeline{emitter: emitter}

	if req.ExpandQuery {
		if f.c.LLM == nil {
			return nil, nil, nil, missingCapability("expand_query", "LLM provider")
		}
		p.pre = append(p.pre, &queryExpansionOp{llm: f.c.LLM})
	} else {
		emitter.Skipped("query_expansion", "expand_query not requested")
	}

	hasVectorBacked := len(st.VectorBacked) > 0

	if req.InterpretFilters && hasVectorBacked {
		if f.c.LLM == nil {
			return nil, nil, nil, missingCapability("interpret_filters", "LLM provider")
		}
		p.pre = append(p.pre, &queryInterpretationOp{llm: f.c.LLM, sourceNames: sourceNames})
	} else if req.InterpretFilters {
		emitter.Skipped("query_interpretation", "no vector-backed source connections")
	}

	if len(req.Filter) > 0 && hasVectorBacked {
		p.pre = append(p.pre, &userFilterOp{})
	} else if len(req.Filter) > 0 {
		emitter.Skipped("user_filter", "no vector-backed source connections")
	}

	if hasVectorBacked {
		p.pre = append(p.pre, &embedQueryOp{embedder: f.c.Embedder, sparseEmbedder: f.c.SparseEmbedder})
	} else {
		emitter.Skipped("embed_query", "no vector-backed source connections")
	}

	decayableSources := make(map[string]bool)
	for _, sc := range st.VectorBacked {
		if entry, ok := f.c.Registry.Lookup(sc.ShortName); ok && entry.SupportsTemporalRelevance {
			decayableSources[sc.ShortName] = true
		}
	}
	if req.TemporalRelevance > 0 && len(decayableSources) > 0 {
		p.pre = append(p.pre, &temporalRelevanceOp{now: nowUnix})
	} else if req.TemporalRelevance > 0 {
		emitter.Skipped("temporal_relevance", "no included source declares supports_temporal_relevance")
	}

	if hasVectorBacked && isValidRetrievalStrategy(req.RetrievalStrategy) {
		p.retrieval = &retrievalOp{store: f.c.VectorStore, decayableSources: decayableSources}
	} else if hasVectorBacked {
		emitter.Skipped("retrieval", "retrieval_strategy not in {neural, keyword, hybrid}")
	}

	if len(federatedSources) > 0 {
		p.federated = &federatedSearchOp{llm: f.c.LLM, sources: federatedSources}
	}

	if req.Rerank {
		if f.c.Reranker == nil {
			return nil, nil, nil, missingCapability("rerank", "rerank provider")
		}
		p.post = append(p.post, &rerankingOp{reranker: f.c.Reranker})
	} else {
		emitter.Skipped("reranking", "rerank not requested")
	}

	if req.GenerateAnswer {
		if f.c.LLM == nil {
			return nil, nil, nil, missingCapability("generate_answer", "LLM provider")
		}
		p.post = append(p.post, &generateAnswerOp{llm: f.c.LLM})
	} else {
		emitter.Skipped("generate_answer", "generate_answer not requested")
	}

	return p, st, emitter, nil
}

// buildDriver mirrors syncrunner.Runner.buildDriver: resolve the
// connection's decrypted credentials (and, for non-direct auth, a token
// getter) and construct the Source Driver bound to it.
func (f *Factory) buildDriver(ctx context.Context, entry registry.Entry, sc core.SourceConnection) (sources.Driver, error) {
	var creds map[string]any
	if sc.CredentialID != nil {
		var err error
		creds, _, err = f.c.Credentials.Get(ctx, *sc.CredentialID)
		if err != nil {
			return nil, fmt.Errorf("load credential: %w", err)
		}
	}

	var tok sources.TokenGetter
	if sc.AuthMethod != core.AuthDirect {
		tok = &factoryTokenGetter{tokens: f.c.Tokens, sc: sc}
	}

	driver, err := entry.New(creds, sc.Config, tok)
	if err != nil {
		return nil, fmt.Errorf("construct driver: %w", err)
	}
	return driver, nil
}

type factoryTokenGetter struct {
	tokens *token.Manager
	sc     core.SourceConnection
}

func (t *factoryTokenGetter) Token(ctx context.Context) (string, error) {
	return t.tokens.GetValidToken(ctx, t.sc)
}

func (t *factoryTokenGetter) RefreshOnUnauthorized(ctx context.Context) (string, error) {
	if t.sc.CredentialID == nil {
		return t.tokens.GetValidToken(ctx, t.sc)
	}
	return t.tokens.RefreshOnUnauthorized(ctx, *t.sc.CredentialID, t.sc.ShortName)
}

func isValidRetrievalStrategy(m vectorstore.SearchMethod) bool {
	switch m {
	case vectorstore.SearchNeural, vectorstore.SearchKeyword, vectorstore.SearchHybrid, "":
		return true
	default:
		return false
	}
}

func missingCapability(requested, capability string) error {
	return errkind.New(errkind.Validation, "missing_capability",
		"%s was requested but no %s is configured for this organization", requested, capability)
}

func nowUnix() int64 { return time.Now().Unix() }
