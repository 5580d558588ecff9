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

// MeetHandlers encapsulates the meet-matching HTTP handlers
type MeetHandlers struct {
	pool *proximity.MatcherPool
}

// GetMeetInfo handles GET /meets/vehicles/{vehicleId}. Returns the meet the
// vehicle is matched to for the caller, or 404 when it is not at any of the
// caller's active meets.
func (h *MeetHandlers) GetMeetInfo(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	user := models.UserFromContext(r.Context())
	if user == nil {
		respondWithError(w, errors.NewAuthError("authentication required", nil).WithRequestID(requestID))
		return
	}

	vehicleID := mux.Vars(r)["vehicleId"]
	matcher := h.pool.Get(r.Context(), user.ID)

	meet := matcher.GetMeetInfo(vehicleID)
	if meet == nil {
		respondWithError(w, errors.NewNotFoundError("vehicle is not at a meet", nil).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, meet)
}

// Helper functions

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
