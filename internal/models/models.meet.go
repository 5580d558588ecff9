package models

import "time"

// ClubMembership links a user to a club. Memberships are managed elsewhere;
// the proximity hub only reads them to scope the meet matcher.
type ClubMembership struct {
	UserID   string `json:"user_id" db:"user_id"`
	ClubID   string `json:"club_id" db:"club_id"`
	ClubName string `json:"club_name" db:"club_name"`
}

// Event is a club meet. Only events with a future (or ongoing) event_date
// participate in meet matching.
type Event struct {
	ID        string    `json:"id" db:"id"`
	ClubID    string    `json:"club_id" db:"club_id"`
	Name      string    `json:"name" db:"name"`
	ClubName  string    `json:"club_name" db:"club_name"`
	EventDate time.Time `json:"event_date" db:"event_date"`
}

// EventMeetDetection records that a vehicle was detected at a specific
// event. Rows carry their own expiry, independent of the raw detection log.
type EventMeetDetection struct {
	ID         string    `json:"id" db:"id"`
	EventID    string    `json:"event_id" db:"event_id"`
	VehicleID  string    `json:"vehicle_id" db:"vehicle_id"`
	EventName  string    `json:"event_name" db:"event_name"`
	ClubName   string    `json:"club_name" db:"club_name"`
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

// MeetVehicle maps a vehicle to the event it is currently matched to.
// Derived in memory only, rebuilt wholesale on every matcher refresh.
type MeetVehicle struct {
	VehicleID string `json:"vehicle_id"`
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	ClubName  string `json:"club_name"`
}
