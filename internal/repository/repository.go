package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cardrop/proximity-hub/internal/database"
	"github.com/cardrop/proximity-hub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// DetectionRepository defines the interface for the persisted detection log.
// Detections are append-only; rows are never updated after insert.
type DetectionRepository interface {
	database.Repository
	Insert(ctx context.Context, detection *models.Detection) error
	ListByDetector(ctx context.Context, detectorUserID string, filters models.DetectionFilters) ([]*models.EnrichedDetection, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// HighlightRepository defines the interface for the "recently seen" markers.
// Upsert is keyed on (user_id, vehicle_id): a repeat highlight resets the
// expiry instead of creating a duplicate row.
type HighlightRepository interface {
	database.Repository
	Upsert(ctx context.Context, highlight *models.DetectionHighlight) error
	ListLive(ctx context.Context, userID string, now time.Time) ([]*models.DetectionHighlight, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MeetRepository defines the read-only view of club, event, and
// event-meet-detection data consumed by the meet matcher. All three tables
// are owned by the wider CarDrop backend; the hub never writes them.
type MeetRepository interface {
	ListMemberships(ctx context.Context, userID string) ([]models.ClubMembership, error)
	ListUpcomingEvents(ctx context.Context, clubIDs []string, now time.Time) ([]*models.Event, error)
	ListLiveMeetDetections(ctx context.Context, eventIDs []string, now time.Time) ([]*models.EventMeetDetection, error)
}
