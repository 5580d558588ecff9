package proximity

import (
	"context"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/models"
	"github.com/cardrop/proximity-hub/internal/repository"
)

// DefaultMeetPollInterval is how often a matcher refreshes its mapping.
const DefaultMeetPollInterval = 30 * time.Second

// MeetMatcher cross-references live meet detections against one user's
// active club events and maintains a vehicle-to-meet lookup table. The
// mapping is rebuilt wholesale on every refresh; a failed refresh keeps the
// previous mapping until the next tick. The refresh algorithm is a plain
// method so it can run and be tested without any timer.
type MeetMatcher struct {
	repo   repository.MeetRepository
	userID string
	now    func() time.Time

	mu       sync.RWMutex
	vehicles map[string]*models.MeetVehicle

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// NewMeetMatcher creates a matcher scoped to one user's club memberships.
func NewMeetMatcher(repo repository.MeetRepository, userID string) *MeetMatcher {
	return &MeetMatcher{
		repo:     repo,
		userID:   userID,
		now:      time.Now,
		vehicles: make(map[string]*models.MeetVehicle),
		stop:     make(chan struct{}),
	}
}

// RefreshOnce runs one refresh cycle: memberships, then upcoming events,
// then live meet detections, short-circuiting to an empty mapping when any
// stage comes back empty. Any fetch error aborts the cycle and leaves the
// previous mapping in place.
func (m *MeetMatcher) RefreshOnce(ctx context.Context) error {
	now := m.now().UTC()

	memberships, err := m.repo.ListMemberships(ctx, m.userID)
	if err != nil {
		nuts.L.Warnf("[MeetMatcher] Membership fetch failed for %s: %v", m.userID, err)
		return err
	}
	if len(memberships) == 0 {
		m.replace(nil)
		return nil
	}

	clubIDs := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		clubIDs = append(clubIDs, membership.ClubID)
	}

	events, err := m.repo.ListUpcomingEvents(ctx, clubIDs, now)
	if err != nil {
		nuts.L.Warnf("[MeetMatcher] Event fetch failed for %s: %v", m.userID, err)
		return err
	}
	if len(events) == 0 {
		m.replace(nil)
		return nil
	}

	eventIDs := make([]string, 0, len(events))
	for _, event := range events {
		eventIDs = append(eventIDs, event.ID)
	}

	detections, err := m.repo.ListLiveMeetDetections(ctx, eventIDs, now)
	if err != nil {
		nuts.L.Warnf("[MeetMatcher] Meet detection fetch failed for %s: %v", m.userID, err)
		return err
	}

	// First write wins: a vehicle detected at several concurrent events maps
	// to the earliest-fetched detection, later rows are ignored.
	vehicles := make(map[string]*models.MeetVehicle, len(detections))
	for _, detection := range detections {
		if _, seen := vehicles[detection.VehicleID]; seen {
			continue
		}
		vehicles[detection.VehicleID] = &models.MeetVehicle{
			VehicleID: detection.VehicleID,
			EventID:   detection.EventID,
			EventName: detection.EventName,
			ClubName:  detection.ClubName,
		}
	}

	m.replace(vehicles)
	return nil
}

// Start runs RefreshOnce immediately and then on every tick until Stop is
// called or the context is cancelled.
func (m *MeetMatcher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMeetPollInterval
	}

	go func() {
		if err := m.RefreshOnce(ctx); err != nil {
			nuts.L.Warnf("[MeetMatcher] Initial refresh failed for %s: %v", m.userID, err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if err := m.RefreshOnce(ctx); err != nil {
					nuts.L.Warnf("[MeetMatcher] Refresh failed for %s: %v", m.userID, err)
				}
			}
		}
	}()
}

// Stop cancels the polling loop. Safe to call more than once. An in-flight
// refresh finishes on its own; the loop exits before the next tick.
func (m *MeetMatcher) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// IsVehicleAtMeet reports whether the vehicle is currently matched to one
// of the user's active meets.
func (m *MeetMatcher) IsVehicleAtMeet(vehicleID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vehicles[vehicleID]
	return ok
}

// GetMeetInfo returns the meet the vehicle is matched to, or nil.
func (m *MeetMatcher) GetMeetInfo(vehicleID string) *models.MeetVehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if meet, ok := m.vehicles[vehicleID]; ok {
		copied := *meet
		return &copied
	}
	return nil
}

func (m *MeetMatcher) replace(vehicles map[string]*models.MeetVehicle) {
	if vehicles == nil {
		vehicles = make(map[string]*models.MeetVehicle)
	}
	m.mu.Lock()
	m.vehicles = vehicles
	m.mu.Unlock()
}

// MatcherPool lazily creates and owns one started MeetMatcher per user, so
// HTTP consumers get the 30-second-refresh semantics without each request
// triggering a full pipeline run.
type MatcherPool struct {
	repo     repository.MeetRepository
	interval time.Duration

	mu       sync.Mutex
	matchers map[string]*MeetMatcher
}

func NewMatcherPool(repo repository.MeetRepository, interval time.Duration) *MatcherPool {
	if interval <= 0 {
		interval = DefaultMeetPollInterval
	}
	return &MatcherPool{
		repo:     repo,
		interval: interval,
		matchers: make(map[string]*MeetMatcher),
	}
}

// Get returns the user's matcher, creating and starting one on first use.
// The first call for a user runs a synchronous refresh so the caller never
// reads a never-populated mapping; concurrent first callers block on the
// same Once until that refresh completes.
func (p *MatcherPool) Get(ctx context.Context, userID string) *MeetMatcher {
	p.mu.Lock()
	matcher, ok := p.matchers[userID]
	if !ok {
		matcher = NewMeetMatcher(p.repo, userID)
		p.matchers[userID] = matcher
	}
	p.mu.Unlock()

	matcher.startOnce.Do(func() {
		if err := matcher.RefreshOnce(ctx); err != nil {
			nuts.L.Warnf("[MatcherPool] Initial refresh failed for %s: %v", userID, err)
		}
		matcher.Start(context.Background(), p.interval)
	})
	return matcher
}

// StopAll cancels every matcher's polling loop.
func (p *MatcherPool) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, matcher := range p.matchers {
		matcher.Stop()
	}
}
