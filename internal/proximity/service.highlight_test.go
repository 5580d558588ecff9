package proximity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddHighlightWithoutUser(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc, _, highlights, _ := newTestService(clock)

	added, err := svc.AddHighlight(context.Background(), "veh_1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Zero(t, highlights.count())
}

func TestAddHighlightResetsExpiry(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc, _, highlights, _ := newTestService(clock)
	ctx := authedCtx("user_1")

	added, err := svc.AddHighlight(ctx, "veh_1")
	require.NoError(t, err)
	require.True(t, added)

	clock.Advance(6 * time.Hour)
	added, err = svc.AddHighlight(ctx, "veh_1")
	require.NoError(t, err)
	require.True(t, added)

	// One row per (user, vehicle): the repeat pushed the expiry out instead
	// of stacking a second marker.
	require.Equal(t, 1, highlights.count())
	highlight := highlights.get("user_1", "veh_1")
	require.NotNil(t, highlight)
	assert.Equal(t, clock.Now().UTC().Add(HighlightTTL), highlight.ExpiresAt)
}

func TestFetchHighlightsExcludesExpired(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc, _, _, _ := newTestService(clock)
	ctx := authedCtx("user_1")

	_, err := svc.AddHighlight(ctx, "veh_old")
	require.NoError(t, err)

	clock.Advance(20 * time.Hour)
	_, err = svc.AddHighlight(ctx, "veh_new")
	require.NoError(t, err)

	// 25h after the first marker, 5h after the second.
	clock.Advance(5 * time.Hour)
	live, err := svc.FetchHighlights(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "veh_new", live[0].VehicleID)

	assert.True(t, svc.IsHighlighted("user_1", "veh_new"))
	assert.False(t, svc.IsHighlighted("user_1", "veh_old"))
}

func TestFetchHighlightsServesStaleOnError(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc, _, highlights, _ := newTestService(clock)
	ctx := authedCtx("user_1")

	_, err := svc.AddHighlight(ctx, "veh_1")
	require.NoError(t, err)

	_, err = svc.FetchHighlights(ctx)
	require.NoError(t, err)

	highlights.listErr = errors.New("connection refused")
	live, err := svc.FetchHighlights(ctx)
	assert.Error(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "veh_1", live[0].VehicleID)

	// The cached set is untouched by the failed fetch.
	assert.True(t, svc.IsHighlighted("user_1", "veh_1"))
}

func TestIsHighlightedUnknownUser(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc, _, _, _ := newTestService(clock)

	assert.False(t, svc.IsHighlighted("user_unknown", "veh_1"))
}
