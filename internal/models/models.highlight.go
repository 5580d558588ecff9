package models

import "time"

// DetectionHighlight marks a vehicle as "recently seen" by a user. There is
// at most one live row per (user_id, vehicle_id) pair; repeated detections
// reset expires_at instead of creating duplicates.
type DetectionHighlight struct {
	UserID     string    `json:"user_id" db:"user_id"`
	VehicleID  string    `json:"vehicle_id" db:"vehicle_id"`
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

// Live reports whether the highlight has not expired at the given instant.
func (h *DetectionHighlight) Live(now time.Time) bool {
	return h.ExpiresAt.After(now)
}
