package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/airweave-core/airweave-core/internal/search"
	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

type searchRequestBody struct {
	Query             string         `json:"query"`
	RetrievalStrategy string         `json:"retrieval_strategy"`
	Offset            int            `json:"offset"`
	Limit             int            `json:"limit"`
	Filter            map[string]any `json:"filter"`
	ExpandQuery       bool           `json:"expand_query"`
	InterpretFilters  bool           `json:"interpret_filters"`
	Rerank            bool           `json:"rerank"`
	GenerateAnswer    bool           `json:"generate_answer"`
	TemporalRelevance float64        `json:"temporal_relevance"`
}

// SearchCollectionAPI handles POST /collections/{readable_id}/search. With
// ?stream=true it upgrades to SSE, relaying the Search Pipeline's Emitter
// events as they're produced instead of waiting for the final Response.
func (s *Server) SearchCollectionAPI(w http.ResponseWriter, r *http.Request) {
	readableID := r.PathValue("readable_id")
	if readableID == "" {
		httpResponse(w, "collection readable id is required", http.StatusBadRequest)
		return
	}

	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	stream := r.URL.Query().Get("stream") == "true"

	req := search.Request{
		Query:             body.Query,
		RetrievalStrategy: parseSearchMethod(body.RetrievalStrategy),
		Offset:            body.Offset,
		Limit:             body.Limit,
		Filter:            body.Filter,
		ExpandQuery:       body.ExpandQuery,
		InterpretFilters:  body.InterpretFilters,
		Rerank:            body.Rerank,
		GenerateAnswer:    body.GenerateAnswer,
		TemporalRelevance: body.TemporalRelevance,
		Stream:            stream,
	}

	requestID := "req_" + ulid.Make().String()
	pipeline, st, emitter, err := s.searchFac.Build(r.Context(), requestID, req, readableID)
	if err != nil {
		httpResponseError(w, err)
		return
	}
	defer emitter.Close()

	if !stream {
		resp, err := pipeline.Run(r.Context(), st)
		if err != nil {
			httpResponseError(w, err)
			return
		}
		httpResponseJSON(w, resp, http.StatusOK)
		return
	}

	s.streamSearch(w, r, pipeline, st, emitter)
}

// parseSearchMethod defaults an empty/unrecognized strategy to hybrid,
// matching vectorstore.SearchHybrid's role as the Vector Store Adapter's
// default per spec.md §4.6.
func parseSearchMethod(raw string) vectorstore.SearchMethod {
	switch vectorstore.SearchMethod(raw) {
	case vectorstore.SearchNeural:
		return vectorstore.SearchNeural
	case vectorstore.SearchKeyword:
		return vectorstore.SearchKeyword
	default:
		return vectorstore.SearchHybrid
	}
}
