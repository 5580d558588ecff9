package proximity

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
)

// AddHighlight marks a vehicle as recently seen by the authenticated user,
// valid for the next 24 hours. A repeat call for the same vehicle resets the
// expiry instead of creating a second row.
func (s *Service) AddHighlight(ctx context.Context, vehicleID string) (bool, error) {
	user := models.UserFromContext(ctx)
	if user == nil {
		nuts.L.Warnf("[ProximityService] AddHighlight without authenticated user, dropping")
		return false, nil
	}

	if vehicleID == "" {
		return false, errors.NewValidationError("vehicle is required", nil)
	}

	now := s.now().UTC()
	highlight := &models.DetectionHighlight{
		UserID:     user.ID,
		VehicleID:  vehicleID,
		DetectedAt: now,
		ExpiresAt:  now.Add(HighlightTTL),
	}

	if err := s.highlights.Upsert(ctx, highlight); err != nil {
		nuts.L.Errorf("[ProximityService] Failed to upsert highlight %s/%s: %v", user.ID, vehicleID, err)
		return false, err
	}

	if err := s.refreshHighlights(ctx, user.ID); err != nil {
		nuts.L.Warnf("[ProximityService] Post-upsert highlight refetch failed for %s: %v", user.ID, err)
	}

	return true, nil
}

// FetchHighlights loads the user's live highlights and wholesale-replaces
// the in-memory set. Already-expired rows are excluded by the query itself,
// so the set is live as of fetch time; it goes stale between fetches.
func (s *Service) FetchHighlights(ctx context.Context) ([]*models.DetectionHighlight, error) {
	user := models.UserFromContext(ctx)
	if user == nil {
		return nil, errors.NewAuthError("authentication required", nil)
	}

	fetched, err := s.highlights.ListLive(ctx, user.ID, s.now().UTC())
	if err != nil {
		nuts.L.Warnf("[ProximityService] Highlight fetch failed for %s, serving cached: %v", user.ID, err)
		return s.cachedHighlights(user.ID), err
	}

	byVehicle := make(map[string]*models.DetectionHighlight, len(fetched))
	for _, highlight := range fetched {
		byVehicle[highlight.VehicleID] = highlight
	}

	s.mu.Lock()
	s.lastHighlights[user.ID] = byVehicle
	s.mu.Unlock()

	return fetched, nil
}

// IsHighlighted is a pure lookup against the last-fetched highlight set. It
// deliberately does not re-check expiry: a highlight can read as live for up
// to one fetch interval past its true expiry, matching the fetch-boundary
// expiry contract.
func (s *Service) IsHighlighted(userID, vehicleID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.lastHighlights[userID]
	if !ok {
		return false
	}
	_, highlighted := set[vehicleID]
	return highlighted
}

func (s *Service) cachedHighlights(userID string) []*models.DetectionHighlight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.lastHighlights[userID]
	out := make([]*models.DetectionHighlight, 0, len(set))
	for _, highlight := range set {
		out = append(out, highlight)
	}
	return out
}

func (s *Service) refreshHighlights(ctx context.Context, userID string) error {
	fetched, err := s.highlights.ListLive(ctx, userID, s.now().UTC())
	if err != nil {
		return err
	}

	byVehicle := make(map[string]*models.DetectionHighlight, len(fetched))
	for _, highlight := range fetched {
		byVehicle[highlight.VehicleID] = highlight
	}

	s.mu.Lock()
	s.lastHighlights[userID] = byVehicle
	s.mu.Unlock()
	return nil
}
