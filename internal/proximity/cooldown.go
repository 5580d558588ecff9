package proximity

import (
	"context"
	"sync"
	"time"
)

// CooldownGate decides whether a fresh sighting of a (detector, vehicle)
// pair is a new detection worth persisting. Scanner ticks arrive sub-second;
// without the gate every tick would flood the detection log with
// near-duplicate writes.
type CooldownGate interface {
	// Allow reports whether a detection for the pair may be recorded now.
	// A true result claims the cooldown window as a side effect.
	Allow(ctx context.Context, detectorUserID, vehicleID string) (bool, error)
}

// MemoryCooldownGate is an in-process CooldownGate for single-instance
// deployments and tests.
type MemoryCooldownGate struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryCooldownGate(interval time.Duration) *MemoryCooldownGate {
	return &MemoryCooldownGate{
		interval: interval,
		now:      time.Now,
		seen:     make(map[string]time.Time),
	}
}

func (g *MemoryCooldownGate) Allow(ctx context.Context, detectorUserID, vehicleID string) (bool, error) {
	key := detectorUserID + "|" + vehicleID
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.seen[key]; ok && now.Sub(last) < g.interval {
		return false, nil
	}

	g.seen[key] = now
	g.prune(now)
	return true, nil
}

// prune drops entries whose window has long passed. Called under the lock;
// keeps the map bounded without a background sweeper.
func (g *MemoryCooldownGate) prune(now time.Time) {
	if len(g.seen) < 4096 {
		return
	}
	cutoff := now.Add(-g.interval)
	for key, last := range g.seen {
		if last.Before(cutoff) {
			delete(g.seen, key)
		}
	}
}
