package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
	"github.com/cardrop/proximity-hub/internal/proximity"
)

// DetectionHandlers encapsulates the detection-related HTTP handlers
type DetectionHandlers struct {
	service *proximity.Service
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	decoder.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return reflect.ValueOf(parsed)
		}
		return reflect.Value{}
	})
	return decoder
}

// recordDetectionRequest is the POST body for manual detection reports
// (most detections arrive via the MQTT ingest instead).
type recordDetectionRequest struct {
	VehicleID      string `json:"vehicle_id"`
	DetectedUserID string `json:"detected_user_id"`
	RSSI           int    `json:"rssi"`
	Location       string `json:"location,omitempty"`
}

// RecordDetection handles POST /detections.
func (h *DetectionHandlers) RecordDetection(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req recordDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	recorded, err := h.service.RecordDetection(r.Context(), req.VehicleID, req.DetectedUserID, req.RSSI, req.Location)
	if err != nil {
		if apiErr, ok := err.(*errors.APIError); ok {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		respondWithError(w, errors.NewInternalError("failed to record detection", err).WithRequestID(requestID))
		return
	}

	// Suppressed by the cooldown gate: acknowledged, nothing written.
	status := http.StatusCreated
	if !recorded {
		status = http.StatusAccepted
	}
	respondWithJSON(w, status, map[string]bool{"recorded": recorded})
}

// ListDetections handles GET /detections. Serves the previous list with a
// 200 when the backend fetch fails but a cached history exists.
func (h *DetectionHandlers) ListDetections(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.DetectionFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	detections, err := h.service.ListDetections(r.Context(), filters)
	if err != nil {
		if apiErr, ok := err.(*errors.APIError); ok && apiErr.Type == errors.ErrorTypeAuth {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		if len(detections) == 0 {
			respondWithError(w, errors.NewInternalError("failed to list detections", err).WithRequestID(requestID))
			return
		}
		nuts.L.Warnf("[API] Serving stale detection history: %v", err)
	}

	respondWithJSON(w, http.StatusOK, detections)
}
