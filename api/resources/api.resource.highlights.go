package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
	"github.com/cardrop/proximity-hub/internal/proximity"
)

// HighlightHandlers encapsulates the highlight-related HTTP handlers
type HighlightHandlers struct {
	service *proximity.Service
}

// ListHighlights handles GET /highlights: the caller's live highlight set.
func (h *HighlightHandlers) ListHighlights(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	highlights, err := h.service.FetchHighlights(r.Context())
	if err != nil {
		if apiErr, ok := err.(*errors.APIError); ok && apiErr.Type == errors.ErrorTypeAuth {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		if len(highlights) == 0 {
			respondWithError(w, errors.NewInternalError("failed to list highlights", err).WithRequestID(requestID))
			return
		}
		nuts.L.Warnf("[API] Serving stale highlight set: %v", err)
	}

	respondWithJSON(w, http.StatusOK, highlights)
}

// AddHighlight handles POST /highlights.
func (h *HighlightHandlers) AddHighlight(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req struct {
		VehicleID string `json:"vehicle_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	added, err := h.service.AddHighlight(r.Context(), req.VehicleID)
	if err != nil {
		if apiErr, ok := err.(*errors.APIError); ok {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		respondWithError(w, errors.NewInternalError("failed to add highlight", err).WithRequestID(requestID))
		return
	}
	if !added {
		respondWithError(w, errors.NewAuthError("authentication required", nil).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckHighlight handles GET /highlights/{vehicleId}: a pure lookup against
// the caller's last-fetched set, no backend round-trip.
func (h *HighlightHandlers) CheckHighlight(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	user := models.UserFromContext(r.Context())
	if user == nil {
		respondWithError(w, errors.NewAuthError("authentication required", nil).WithRequestID(requestID))
		return
	}

	vehicleID := mux.Vars(r)["vehicleId"]
	respondWithJSON(w, http.StatusOK, map[string]bool{
		"highlighted": h.service.IsHighlighted(user.ID, vehicleID),
	})
}
