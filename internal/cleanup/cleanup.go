package cleanup

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/repository"
)

// RetentionService periodically prunes expired highlights and aged-out
// detection rows. Highlights die lazily at read time; the sweep only keeps
// the table from growing without bound.
type RetentionService struct {
	detections repository.DetectionRepository
	highlights repository.HighlightRepository
	retention  time.Duration
	events     *nuts.EventEmitter
	now        func() time.Time

	stop chan struct{}
	done chan struct{}
}

// New creates a RetentionService. retention bounds how long raw detection
// rows are kept.
func New(
	detections repository.DetectionRepository,
	highlights repository.HighlightRepository,
	retention time.Duration,
) *RetentionService {
	return &RetentionService{
		detections: detections,
		highlights: highlights,
		retention:  retention,
		events:     nuts.NewEventEmitter(),
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SweepOnce runs a single retention pass. Each purge failure is logged and
// the other purge still runs; a sweep never takes the service down.
func (s *RetentionService) SweepOnce(ctx context.Context) error {
	now := s.now().UTC()
	var firstErr error

	expired, err := s.highlights.DeleteExpired(ctx, now)
	if err != nil {
		nuts.L.Errorf("[Retention] Failed to purge expired highlights: %v", err)
		firstErr = err
	} else if expired > 0 {
		if err := s.events.Emit("highlights.purged", fmt.Sprintf("%d", expired)); err != nil {
			nuts.L.Warnf("[Retention] Failed to dispatch highlight purge event: %v", err)
		}
	}

	purged, err := s.detections.DeleteBefore(ctx, now.Add(-s.retention))
	if err != nil {
		nuts.L.Errorf("[Retention] Failed to purge old detections: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	} else if purged > 0 {
		if err := s.events.Emit("detections.purged", fmt.Sprintf("%d", purged)); err != nil {
			nuts.L.Warnf("[Retention] Failed to dispatch detection purge event: %v", err)
		}
	}

	return firstErr
}

// Start runs SweepOnce on the given interval until Stop is called.
func (s *RetentionService) Start(ctx context.Context, interval time.Duration) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.SweepOnce(ctx); err != nil {
					nuts.L.Warnf("[Retention] Sweep failed: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *RetentionService) Stop() {
	close(s.stop)
	<-s.done
}

// OnCleanup registers a callback for purge events. The listener signature
// must match the single string argument Emit passes; the emitter dispatches
// reflectively and rejects mismatched signatures.
func (s *RetentionService) OnCleanup(event string, handler func(detail string)) {
	s.events.On(event, "cleanup_handler", func(detail string) {
		handler(detail)
	})
}
