package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/airweave-core/airweave-core/internal/core"
)

type createCollectionRequest struct {
	ReadableID     string `json:"readable_id"`
	Name           string `json:"name"`
	VectorSize     int    `json:"vector_size"`
	OrganizationID string `json:"organization_id"`
}

// CreateCollectionAPI handles POST /collections.
func (s *Server) CreateCollectionAPI(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	col, err := s.store.CreateCollection(r.Context(), core.Collection{
		ReadableID:     req.ReadableID,
		Name:           req.Name,
		VectorSize:     req.VectorSize,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		httpResponseError(w, err)
		return
	}

	httpResponseJSON(w, col, http.StatusCreated)
}
