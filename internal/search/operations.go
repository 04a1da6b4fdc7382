// Package search implements the Search Pipeline (C10): a fixed operation
// graph, built per request by Factory.Build from the target Collection's
// source catalog, that expands and interprets a query, retrieves and
// federates candidates, reranks, and optionally grounds an LLM answer in
// the results — adapting the shape of the teacher's workflow engine
// (internal/service/workflow: Noder/NodeResult, run-then-inspect) to a
// graph whose topology is decided once per request instead of authored by
// a user.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/providers"
	"github.com/airweave-core/airweave-core/internal/registry"
	"github.com/airweave-core/airweave-core/internal/sources"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

// maxQueryVariants bounds QueryExpansion's paraphrase count; the primary
// query is always variant 0 and doesn't count against this limit.
const maxQueryVariants = 3

// --- QueryExpansion ---

type queryExpansionOp struct {
	llm providers.LLM
}

func (o *queryExpansionOp) Name() string { return "query_expansion" }

func (o *queryExpansionOp) Run(ctx context.Context, st *State) error {
	st.QueryVariants = []string{st.Request.Query}

	reply, err := o.llm.Chat(ctx, []providers.Message{
		{Role: "system", Content: fmt.Sprintf(
			"Produce up to %d alternate phrasings of the user's search query that "+
				"would surface the same information using different wording. "+
				"Reply with exactly one phrasing per line, nothing else.", maxQueryVariants)},
		{Role: "user", Content: st.Request.Query},
	})
	if err != nil {
		return fmt.Errorf("expand query: %w", err)
	}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == st.Request.Query {
			continue
		}
		st.QueryVariants = append(st.QueryVariants, line)
		if len(st.QueryVariants) >= maxQueryVariants+1 {
			break
		}
	}
	return nil
}

// --- QueryInterpretation ---

type queryInterpretationOp struct {
	llm         providers.LLM
	sourceNames []string
}

func (o *queryInterpretationOp) Name() string { return "query_interpretation" }

func (o *queryInterpretationOp) Run(ctx context.Context, st *State) error {
	reply, err := o.llm.Chat(ctx, []providers.Message{
		{Role: "system", Content: fmt.Sprintf(
			"The collection being searched contains entities from these sources: %s. "+
				"Given the user's query, decide whether it implies a filter over "+
				"payload fields such as source_name or entity_type. Reply with a "+
				"compact JSON object of field/value pairs to filter on, or {} if no "+
				"filter is implied. Reply with JSON only.", strings.Join(o.sourceNames, ", "))},
		{Role: "user", Content: st.Request.Query},
	})
	if err != nil {
		return fmt.Errorf("interpret query filters: %w", err)
	}

	derived, err := parseFilterJSON(reply)
	if err != nil {
		// A malformed interpretation degrades to "no derived filter"
		// rather than failing the whole request — interpret_filters is
		// a quality-of-life refinement, not a load-bearing step.
		return nil
	}
	st.Filter = mergeFilters(st.Filter, derived)
	return nil
}

// --- UserFilter ---

type userFilterOp struct{}

func (o *userFilterOp) Name() string { return "user_filter" }

func (o *userFilterOp) Run(_ context.Context, st *State) error {
	st.Filter = mergeFilters(st.Filter, st.Request.Filter)
	return nil
}

// --- EmbedQuery ---

type embedQueryOp struct {
	embedder       providers.Embedder
	sparseEmbedder providers.SparseEmbedder
}

func (o *embedQueryOp) Name() string { return "embed_query" }

func (o *embedQueryOp) Run(ctx context.Context, st *State) error {
	variants := st.QueryVariants
	if len(variants) == 0 {
		variants = []string{st.Request.Query}
	}

	dense, err := o.embedder.Embed(ctx, variants)
	if err != nil {
		return fmt.Errorf("embed query variants: %w", err)
	}
	st.DenseVectors = dense

	needsSparse := st.Request.RetrievalStrategy == vectorstore.SearchKeyword || st.Request.RetrievalStrategy == vectorstore.SearchHybrid
	if needsSparse && o.sparseEmbedder != nil {
		sparse, err := o.sparseEmbedder.EmbedSparse(ctx, []string{st.Request.Query})
		if err != nil {
			return fmt.Errorf("sparse embed primary query: %w", err)
		}
		if len(sparse) == 1 {
			st.SparseVector = sparse[0]
		}
	}
	return nil
}

// --- TemporalRelevance ---

const (
	defaultDecayField        = "updated_at"
	defaultDecayScaleSeconds = int64(30 * 24 * 60 * 60) // 30 days
	defaultDecayMidpoint     = 0.5
)

type temporalRelevanceOp struct {
	now func() int64
}

func (o *temporalRelevanceOp) Name() string { return "temporal_relevance" }

// Run only populates st.Decay with the system-default curve; request
// shapes don't expose decay_type/datetime_field/midpoint (spec.md §6:
// "missing fields inherit from system defaults loaded at startup"), so
// every search that opts into temporal_relevance gets the same curve.
// Scoping the curve to sources that declare supports_temporal_relevance
// happens downstream in retrievalOp, which is the only place that knows
// which hit came from which source.
func (o *temporalRelevanceOp) Run(_ context.Context, st *State) error {
	st.Decay = &vectorstore.DecayConfig{
		Type:           vectorstore.DecayExponential,
		DatetimeField:  defaultDecayField,
		TargetDatetime: o.now(),
		ScaleSeconds:   defaultDecayScaleSeconds,
		Midpoint:       defaultDecayMidpoint,
		Weight:         st.Request.TemporalRelevance,
	}
	return nil
}

// --- Retrieval ---

type retrievalOp struct {
	store vectorstore.Store
	// decayableSources is the set of source short names this request's
	// Collection includes that declare supports_temporal_relevance; a
	// hit whose source_name isn't in this set is never decayed, per
	// spec.md E4 ("points from B are scored without decay").
	decayableSources map[string]bool
}

func (o *retrievalOp) Name() string { return "retrieval" }

func (o *retrievalOp) Run(ctx context.Context, st *State) error {
	method := st.Request.RetrievalStrategy
	if method == "" {
		method = vectorstore.SearchNeural
	}

	requests := make([]vectorstore.SearchRequest, 0, len(st.DenseVectors))
	for _, dv := range st.DenseVectors {
		req := vectorstore.SearchRequest{
			DenseVector: dv,
			Limit:       st.Request.Limit + st.Request.Offset,
			Method:      method,
			Decay:       st.Decay,
		}
		if method == vectorstore.SearchKeyword || method == vectorstore.SearchHybrid {
			req.SparseVector = st.SparseVector
		}
		requests = append(requests, req)
	}

	resultSets, err := o.store.Search(ctx, st.Collection.ID, requests)
	if err != nil {
		return fmt.Errorf("bulk search: %w", err)
	}

	best := make(map[string]Result)
	for _, hits := range resultSets {
		if st.Decay != nil {
			hits = o.decayHits(hits, *st.Decay)
		}
		for _, hit := range hits {
			entityID, _ := hit.Payload["entity_id"].(string)
			if entityID == "" {
				entityID = hit.ID
			}
			r := Result{EntityID: entityID, Score: hit.Score, Payload: hit.Payload}
			if sourceName, _ := hit.Payload["source_name"].(string); sourceName != "" {
				r.Source = sourceName
			}
			if existing, ok := best[entityID]; !ok || r.Score > existing.Score {
				best[entityID] = r
			}
		}
	}

	merged := make([]Result, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	if st.Request.Offset < len(merged) {
		merged = merged[st.Request.Offset:]
	} else {
		merged = nil
	}
	if st.Request.Limit < len(merged) {
		merged = merged[:st.Request.Limit]
	}

	st.VectorHits = merged
	return nil
}

// decayHits rescales every hit whose source_name payload field names a
// source in decayableSources, leaving every other hit's score untouched.
// Hits lacking a parseable cfg.DatetimeField are likewise left untouched
// rather than dropped or zeroed.
func (o *retrievalOp) decayHits(hits []vectorstore.Hit, cfg vectorstore.DecayConfig) []vectorstore.Hit {
	out := make([]vectorstore.Hit, len(hits))
	copy(out, hits)
	for i, hit := range out {
		sourceName, _ := hit.Payload["source_name"].(string)
		if !o.decayableSources[sourceName] {
			continue
		}
		ts, ok := vectorstore.DecayTimestamp(hit.Payload, cfg.DatetimeField)
		if !ok {
			continue
		}
		out[i].Score = vectorstore.ApplyDecay(hit.Score, cfg, ts)
	}
	return out
}

// --- FederatedSearch ---

// federatedSource pairs a federated Source Connection with its resolved
// driver, built once at Factory.Build time the same way
// syncrunner.Runner.buildDriver resolves a driver for a sync.
type federatedSource struct {
	connection core.SourceConnection
	entry      registry.Entry
	searcher   sources.FederatedSearcher
}

type federatedSearchOp struct {
	llm     providers.LLM
	sources []federatedSource
}

func (o *federatedSearchOp) Name() string { return "federated_search" }

func (o *federatedSearchOp) Run(ctx context.Context, st *State) error {
	var hits []Result

	for _, fs := range o.sources {
		query := st.Request.Query
		if o.llm != nil {
			if extracted, err := o.llm.Chat(ctx, []providers.Message{
				{Role: "system", Content: fmt.Sprintf(
					"Extract the best short keyword or phrase query to send to %s's own "+
						"search API to answer the user's question. Reply with the query only.",
					fs.entry.Name)},
				{Role: "user", Content: st.Request.Query},
			}); err == nil && strings.TrimSpace(extracted) != "" {
				query = strings.TrimSpace(extracted)
			}
		}

		entities, err := fs.searcher.Search(ctx, query, st.Request.Limit+st.Request.Offset)
		if err != nil {
			return fmt.Errorf("federated search %s: %w", fs.connection.ShortName, err)
		}

		for i, e := range entities {
			// Federated providers return results already ranked; score is
			// synthesized as a descending rank so mergeResults' normalize
			// step has something meaningful to interleave against.
			score := float64(len(entities) - i)
			hits = append(hits, Result{
				EntityID: e.EntityID,
				Score:    score,
				Source:   fs.connection.ShortName,
				Payload: map[string]any{
					"entity_id":   e.EntityID,
					"name":        e.Name,
					"source_name": fs.connection.ShortName,
					"breadcrumbs": e.Breadcrumbs,
				},
			})
		}
	}

	st.FederatedHits = hits
	return nil
}

// --- Reranking ---

type rerankingOp struct {
	reranker providers.Reranker
}

func (o *rerankingOp) Name() string { return "reranking" }

func (o *rerankingOp) Run(ctx context.Context, st *State) error {
	if len(st.Merged) == 0 {
		st.Reranked = st.Merged
		return nil
	}

	candidates := make([]providers.RerankCandidate, len(st.Merged))
	for i, r := range st.Merged {
		text, _ := r.Payload["name"].(string)
		candidates[i] = providers.RerankCandidate{ID: r.EntityID, Text: text}
	}

	scores, err := o.reranker.Rerank(ctx, st.Request.Query, candidates)
	if err != nil {
		return fmt.Errorf("rerank candidates: %w", err)
	}

	byID := make(map[string]Result, len(st.Merged))
	for _, r := range st.Merged {
		byID[r.EntityID] = r
	}

	reranked := make([]Result, 0, len(scores))
	for _, s := range scores {
		r, ok := byID[s.ID]
		if !ok {
			continue
		}
		r.Score = s.Score
		reranked = append(reranked, r)
	}

	if st.Request.Limit < len(reranked) {
		reranked = reranked[:st.Request.Limit]
	}
	st.Reranked = reranked
	return nil
}

// --- GenerateAnswer ---

type generateAnswerOp struct {
	llm providers.LLM
}

func (o *generateAnswerOp) Name() string { return "generate_answer" }

func (o *generateAnswerOp) Run(ctx context.Context, st *State) error {
	results := st.Results()

	var groundingContext strings.Builder
	var citations []string
	for _, r := range results {
		name, _ := r.Payload["name"].(string)
		fmt.Fprintf(&groundingContext, "[%s] %s\n", r.EntityID, name)
		citations = append(citations, r.EntityID)
	}

	answer, err := o.llm.Chat(ctx, []providers.Message{
		{Role: "system", Content: "Answer the user's question using only the " +
			"context below, formatted in markdown. Cite sources by their bracketed " +
			"id. If the context doesn't contain the answer, say so plainly instead " +
			"of guessing."},
		{Role: "system", Content: groundingContext.String()},
		{Role: "user", Content: st.Request.Query},
	})
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}

	st.Answer = answer
	st.Citations = citations
	return nil
}

// parseFilterJSON decodes an LLM's JSON-filter reply, tolerating a
// markdown code fence around the object since models commonly wrap JSON
// in one despite being asked not to.
func parseFilterJSON(reply string) (map[string]any, error) {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	var filter map[string]any
	if err := json.Unmarshal([]byte(reply), &filter); err != nil {
		return nil, fmt.Errorf("parse filter json: %w", err)
	}
	return filter, nil
}

// mergeFilters ANDs any number of non-nil filter maps. Two or more
// present filters are combined under an "and" composite key rather than
// merged key-by-key, since caller and derived filters may legitimately
// repeat a field (e.g. both constraining source_name).
func mergeFilters(filters ...map[string]any) map[string]any {
	var present []map[string]any
	for _, f := range filters {
		if len(f) > 0 {
			present = append(present, f)
		}
	}
	switch len(present) {
	case 0:
		return nil
	case 1:
		return present[0]
	default:
		return map[string]any{"and": present}
	}
}
