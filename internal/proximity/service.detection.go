package proximity

import (
	"context"

	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/ble"
	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
)

// RecordDetection persists a detection of another user's vehicle beacon on
// behalf of the authenticated detector. Returns false without writing when
// no user is authenticated or when the (detector, vehicle) pair is still
// inside its cooldown window. On success the detector's cached history is
// refetched rather than patched locally, so the cache briefly lags the
// write until the re-query completes.
func (s *Service) RecordDetection(ctx context.Context, vehicleID, detectedUserID string, rssi int, location string) (bool, error) {
	user := models.UserFromContext(ctx)
	if user == nil {
		nuts.L.Warnf("[ProximityService] RecordDetection without authenticated user, dropping")
		return false, nil
	}

	if vehicleID == "" || detectedUserID == "" {
		return false, errors.NewValidationError("vehicle and detected user are required", nil)
	}

	allowed, err := s.gate.Allow(ctx, user.ID, vehicleID)
	if err != nil {
		// A broken gate backend must not stall the pipeline: log and record
		// anyway, accepting possible near-duplicates while it recovers.
		nuts.L.Warnf("[ProximityService] Cooldown gate error for %s/%s: %v", user.ID, vehicleID, err)
		allowed = true
	}
	if !allowed {
		return false, nil
	}

	detection := &models.Detection{
		ID:                nuts.NID("det", 12),
		DetectorUserID:    user.ID,
		DetectedVehicleID: vehicleID,
		DetectedUserID:    detectedUserID,
		RSSI:              rssi,
		Proximity:         ble.Classify(rssi),
		Location:          location,
		DetectedAt:        s.now().UTC(),
	}

	if err := s.detections.Insert(ctx, detection); err != nil {
		nuts.L.Errorf("[ProximityService] Failed to record detection of %s by %s: %v", vehicleID, user.ID, err)
		return false, err
	}

	// A detection always refreshes the vehicle's highlight.
	if _, err := s.AddHighlight(ctx, vehicleID); err != nil {
		nuts.L.Warnf("[ProximityService] Failed to refresh highlight for %s: %v", vehicleID, err)
	}

	if err := s.refreshDetections(ctx, user.ID); err != nil {
		nuts.L.Warnf("[ProximityService] Post-write history refetch failed for %s: %v", user.ID, err)
	}

	return true, nil
}

// ListDetections returns the detector's most recent detections, newest
// first, capped at 100 rows and filtered by the caller's read roles. On a
// fetch error the previous cached list is returned alongside the error.
func (s *Service) ListDetections(ctx context.Context, filters models.DetectionFilters) ([]*models.EnrichedDetection, error) {
	user := models.UserFromContext(ctx)
	if user == nil {
		return nil, errors.NewAuthError("authentication required", nil)
	}

	fetched, err := s.detections.ListByDetector(ctx, user.ID, filters)
	if err != nil {
		nuts.L.Warnf("[ProximityService] Detection fetch failed for %s, serving cached: %v", user.ID, err)
		return s.filterDetections(ctx, s.cachedDetections(user.ID)), err
	}

	s.mu.Lock()
	s.lastDetections[user.ID] = fetched
	s.mu.Unlock()

	return s.filterDetections(ctx, fetched), nil
}

// CachedDetections returns the last successfully fetched history for a user
// without touching the backend.
func (s *Service) CachedDetections(userID string) []*models.EnrichedDetection {
	return s.cachedDetections(userID)
}

func (s *Service) cachedDetections(userID string) []*models.EnrichedDetection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached := s.lastDetections[userID]
	out := make([]*models.EnrichedDetection, len(cached))
	copy(out, cached)
	return out
}

func (s *Service) refreshDetections(ctx context.Context, userID string) error {
	fetched, err := s.detections.ListByDetector(ctx, userID, models.DetectionFilters{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastDetections[userID] = fetched
	s.mu.Unlock()
	return nil
}

// filterDetections strips fields the caller's roles may not read, e.g. the
// detection location for non-owners. Filtering runs on the flat inner
// Detection, whose fields carry the readxs tags; the vehicle and profile
// snapshots are public by design and pass through untouched.
func (s *Service) filterDetections(ctx context.Context, detections []*models.EnrichedDetection) []*models.EnrichedDetection {
	roles := models.RolesFromContext(ctx)
	filtered := make([]*models.EnrichedDetection, 0, len(detections))

	for _, detection := range detections {
		filteredMap, err := struccy.StructToMapFieldsWithReadXS(&detection.Detection, roles)
		if err != nil {
			nuts.L.Warnf("[ProximityService] Failed to filter detection %s: %v", detection.ID, err)
			continue
		}
		filteredDetection := &models.EnrichedDetection{
			Vehicle: detection.Vehicle,
			Profile: detection.Profile,
		}
		_, err = struccy.MergeMapStringFieldsToStruct(&filteredDetection.Detection, filteredMap, roles)
		if err != nil {
			nuts.L.Warnf("[ProximityService] Failed to map filtered detection %s: %v", detection.ID, err)
			continue
		}
		filtered = append(filtered, filteredDetection)
	}

	return filtered
}
