package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardrop/proximity-hub/internal/database"
	"github.com/cardrop/proximity-hub/internal/models"
)

type fakeDetectionRepo struct {
	deleted      int64
	deleteErr    error
	deleteBefore time.Time
}

func (r *fakeDetectionRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (r *fakeDetectionRepo) Insert(ctx context.Context, detection *models.Detection) error {
	return nil
}

func (r *fakeDetectionRepo) ListByDetector(ctx context.Context, detectorUserID string, filters models.DetectionFilters) ([]*models.EnrichedDetection, error) {
	return nil, nil
}

func (r *fakeDetectionRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	r.deleteBefore = before
	return r.deleted, r.deleteErr
}

type fakeHighlightRepo struct {
	expired   int64
	expireErr error
}

func (r *fakeHighlightRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (r *fakeHighlightRepo) Upsert(ctx context.Context, highlight *models.DetectionHighlight) error {
	return nil
}

func (r *fakeHighlightRepo) ListLive(ctx context.Context, userID string, now time.Time) ([]*models.DetectionHighlight, error) {
	return nil, nil
}

func (r *fakeHighlightRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.expired, r.expireErr
}

func TestSweepOnce(t *testing.T) {
	detections := &fakeDetectionRepo{deleted: 7}
	highlights := &fakeHighlightRepo{expired: 3}

	svc := New(detections, highlights, 30*24*time.Hour)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	purged := make(chan string, 2)
	svc.OnCleanup("detections.purged", func(detail string) { purged <- "detections:" + detail })
	svc.OnCleanup("highlights.purged", func(detail string) { purged <- "highlights:" + detail })

	require.NoError(t, svc.SweepOnce(context.Background()))

	assert.Equal(t, now.Add(-30*24*time.Hour), detections.deleteBefore)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case detail := <-purged:
			got[detail] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for purge events")
		}
	}
	assert.True(t, got["detections:7"])
	assert.True(t, got["highlights:3"])
}

func TestSweepOnceContinuesPastFailures(t *testing.T) {
	detections := &fakeDetectionRepo{deleted: 2}
	highlights := &fakeHighlightRepo{expireErr: errors.New("connection refused")}

	svc := New(detections, highlights, 30*24*time.Hour)

	purged := make(chan string, 1)
	svc.OnCleanup("detections.purged", func(detail string) { purged <- detail })

	err := svc.SweepOnce(context.Background())
	assert.Error(t, err)

	// The detection purge still ran despite the highlight purge failing.
	select {
	case detail := <-purged:
		assert.Equal(t, "2", detail)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for purge event")
	}
	assert.False(t, detections.deleteBefore.IsZero())
}
