package proximity

import (
	"context"
	"sync"
	"time"

	"github.com/cardrop/proximity-hub/internal/database"
	"github.com/cardrop/proximity-hub/internal/models"
)

// fakeClock is a hand-adjustable time source for cooldown and expiry tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func authedCtx(userID string, roles ...string) context.Context {
	if len(roles) == 0 {
		roles = []string{"owner"}
	}
	return models.WithUser(context.Background(), &models.UserContext{
		ID:       userID,
		Username: userID,
		Roles:    roles,
	})
}

type fakeDetectionRepo struct {
	mu        sync.Mutex
	inserted  []*models.Detection
	insertErr error
	listErr   error
	// enrich optionally attaches vehicle/profile snapshots to listed rows,
	// standing in for the history query's joins.
	enrich func(*models.EnrichedDetection)
}

func (r *fakeDetectionRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (r *fakeDetectionRepo) Insert(ctx context.Context, detection *models.Detection) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	r.inserted = append(r.inserted, detection)
	r.mu.Unlock()
	return nil
}

func (r *fakeDetectionRepo) ListByDetector(ctx context.Context, detectorUserID string, filters models.DetectionFilters) ([]*models.EnrichedDetection, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.EnrichedDetection
	// Newest first, mirroring the history query's ordering.
	for i := len(r.inserted) - 1; i >= 0; i-- {
		if r.inserted[i].DetectorUserID != detectorUserID {
			continue
		}
		enriched := &models.EnrichedDetection{Detection: *r.inserted[i]}
		if r.enrich != nil {
			r.enrich(enriched)
		}
		out = append(out, enriched)
	}
	return out, nil
}

func (r *fakeDetectionRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*models.Detection
	var removed int64
	for _, detection := range r.inserted {
		if detection.DetectedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, detection)
	}
	r.inserted = kept
	return removed, nil
}

func (r *fakeDetectionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

type fakeHighlightRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.DetectionHighlight
	upsertErr error
	listErr   error
}

func newFakeHighlightRepo() *fakeHighlightRepo {
	return &fakeHighlightRepo{rows: make(map[string]*models.DetectionHighlight)}
}

func (r *fakeHighlightRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (r *fakeHighlightRepo) Upsert(ctx context.Context, highlight *models.DetectionHighlight) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	r.rows[highlight.UserID+"|"+highlight.VehicleID] = highlight
	r.mu.Unlock()
	return nil
}

func (r *fakeHighlightRepo) ListLive(ctx context.Context, userID string, now time.Time) ([]*models.DetectionHighlight, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.DetectionHighlight
	for _, highlight := range r.rows {
		if highlight.UserID == userID && highlight.ExpiresAt.After(now) {
			out = append(out, highlight)
		}
	}
	return out, nil
}

func (r *fakeHighlightRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key, highlight := range r.rows {
		if !highlight.ExpiresAt.After(now) {
			delete(r.rows, key)
			removed++
		}
	}
	return removed, nil
}

func (r *fakeHighlightRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeHighlightRepo) get(userID, vehicleID string) *models.DetectionHighlight {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[userID+"|"+vehicleID]
}

type fakeMeetRepo struct {
	mu          sync.Mutex
	memberships []models.ClubMembership
	events      []*models.Event
	detections  []*models.EventMeetDetection

	membershipErr error
	eventErr      error
	detectionErr  error

	eventCalls     int
	detectionCalls int
}

func (r *fakeMeetRepo) ListMemberships(ctx context.Context, userID string) ([]models.ClubMembership, error) {
	if r.membershipErr != nil {
		return nil, r.membershipErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ClubMembership
	for _, membership := range r.memberships {
		if membership.UserID == userID {
			out = append(out, membership)
		}
	}
	return out, nil
}

func (r *fakeMeetRepo) ListUpcomingEvents(ctx context.Context, clubIDs []string, now time.Time) ([]*models.Event, error) {
	r.mu.Lock()
	r.eventCalls++
	r.mu.Unlock()
	if r.eventErr != nil {
		return nil, r.eventErr
	}

	clubs := make(map[string]bool, len(clubIDs))
	for _, id := range clubIDs {
		clubs[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Event
	for _, event := range r.events {
		if clubs[event.ClubID] && !event.EventDate.Before(now) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *fakeMeetRepo) ListLiveMeetDetections(ctx context.Context, eventIDs []string, now time.Time) ([]*models.EventMeetDetection, error) {
	r.mu.Lock()
	r.detectionCalls++
	r.mu.Unlock()
	if r.detectionErr != nil {
		return nil, r.detectionErr
	}

	events := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		events[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.EventMeetDetection
	for _, detection := range r.detections {
		if events[detection.EventID] && detection.ExpiresAt.After(now) {
			out = append(out, detection)
		}
	}
	return out, nil
}

type stubGate struct {
	allow bool
	err   error
	calls int
}

func (g *stubGate) Allow(ctx context.Context, detectorUserID, vehicleID string) (bool, error) {
	g.calls++
	return g.allow, g.err
}
