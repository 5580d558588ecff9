package proximity

import (
	"sync"
	"time"

	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
	"github.com/cardrop/proximity-hub/internal/repository"
)

// HighlightTTL is how long a "recently seen" marker lives. Fixed by the
// client contract, not configurable.
const HighlightTTL = 24 * time.Hour

// DefaultDetectionCooldown is the minimum gap between persisted detections
// for the same (detector, vehicle) pair.
const DefaultDetectionCooldown = 60 * time.Second

// Service is the detection recorder and highlight tracker. It owns two
// in-memory, rebuildable caches per user: the last-fetched detection history
// and the last-fetched live-highlight set. Both are wholesale-replaced on
// successful fetches and left untouched on failures, so consumers always see
// either fresh or stale-but-consistent data, never partial updates.
type Service struct {
	detections repository.DetectionRepository
	highlights repository.HighlightRepository
	gate       CooldownGate
	now        func() time.Time

	mu             sync.RWMutex
	lastDetections map[string][]*models.EnrichedDetection
	lastHighlights map[string]map[string]*models.DetectionHighlight
}

// New creates a proximity service. The gate must not be nil; use a
// MemoryCooldownGate for single-instance deployments.
func New(
	detections repository.DetectionRepository,
	highlights repository.HighlightRepository,
	gate CooldownGate,
) *Service {
	return &Service{
		detections:     detections,
		highlights:     highlights,
		gate:           gate,
		now:            time.Now,
		lastDetections: make(map[string][]*models.EnrichedDetection),
		lastHighlights: make(map[string]map[string]*models.DetectionHighlight),
	}
}

// Validate checks that all required dependencies are wired.
func (s *Service) Validate() error {
	if s.detections == nil {
		return errMissingDependency("detections")
	}
	if s.highlights == nil {
		return errMissingDependency("highlights")
	}
	if s.gate == nil {
		return errMissingDependency("cooldown gate")
	}
	return nil
}

func errMissingDependency(name string) error {
	return errors.NewInternalError("missing dependency: "+name, nil)
}
