package resources

import (
	"net/http"

	"github.com/cardrop/proximity-hub/internal/monitoring"
	"github.com/cardrop/proximity-hub/internal/proximity"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Detections *DetectionHandlers
	Highlights *HighlightHandlers
	Meets      *MeetHandlers
	monitoring *monitoring.Service
}

// NewResources creates a new Resources instance
func NewResources(svc *proximity.Service, pool *proximity.MatcherPool, mon *monitoring.Service) *Resources {
	return &Resources{
		Detections: &DetectionHandlers{service: svc},
		Highlights: &HighlightHandlers{service: svc},
		Meets:      &MeetHandlers{pool: pool},
		monitoring: mon,
	}
}

// Metrics exposes the in-process event counters.
func (r *Resources) Metrics(w http.ResponseWriter, req *http.Request) {
	respondWithJSON(w, http.StatusOK, r.monitoring.Snapshot())
}
