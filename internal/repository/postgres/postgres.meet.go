package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/cardrop/proximity-hub/internal/database"
	"github.com/cardrop/proximity-hub/internal/errors"
	"github.com/cardrop/proximity-hub/internal/models"
)

// MeetRepo reads club, event, and event-meet-detection rows. These tables
// belong to the wider CarDrop backend; the hub never writes them.
type MeetRepo struct {
	db database.DB
}

func NewMeetRepository(db database.DB) *MeetRepo {
	return &MeetRepo{db: db}
}

func (r *MeetRepo) ListMemberships(ctx context.Context, userID string) ([]models.ClubMembership, error) {
	memberships := []models.ClubMembership{}
	query := `
		SELECT cm.user_id, cm.club_id, c.name AS club_name
		FROM club_members cm
		JOIN clubs c ON c.id = cm.club_id
		WHERE cm.user_id = $1`

	err := r.db.GetDB().SelectContext(ctx, &memberships, query, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list club memberships", err)
	}
	return memberships, nil
}

// ListUpcomingEvents returns events for the given clubs with event_date at
// or after now. Past events never participate in meet matching.
func (r *MeetRepo) ListUpcomingEvents(ctx context.Context, clubIDs []string, now time.Time) ([]*models.Event, error) {
	events := []*models.Event{}
	query := `
		SELECT e.id, e.club_id, e.name, c.name AS club_name, e.event_date
		FROM events e
		JOIN clubs c ON c.id = e.club_id
		WHERE e.club_id = ANY($1) AND e.event_date >= $2
		ORDER BY e.event_date ASC`

	err := r.db.GetDB().SelectContext(ctx, &events, query, pq.Array(clubIDs), now)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list upcoming events", err)
	}
	return events, nil
}

// ListLiveMeetDetections returns unexpired meet detections for the given
// events, ordered by detected_at ascending. The matcher's first-write-wins
// tie-break depends on this ordering being stable.
func (r *MeetRepo) ListLiveMeetDetections(ctx context.Context, eventIDs []string, now time.Time) ([]*models.EventMeetDetection, error) {
	detections := []*models.EventMeetDetection{}
	query := `
		SELECT md.id, md.event_id, md.vehicle_id,
			e.name AS event_name, c.name AS club_name,
			md.detected_at, md.expires_at
		FROM event_meet_detections md
		JOIN events e ON e.id = md.event_id
		JOIN clubs c ON c.id = e.club_id
		WHERE md.event_id = ANY($1) AND md.expires_at > $2
		ORDER BY md.detected_at ASC`

	err := r.db.GetDB().SelectContext(ctx, &detections, query, pq.Array(eventIDs), now)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list meet detections", err)
	}
	return detections, nil
}
