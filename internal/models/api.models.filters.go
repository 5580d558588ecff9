package models

import "time"

// DetectionFilters defines the available filter options for the detection
// history query. Decoded from query parameters by the API layer.
type DetectionFilters struct {
	VehicleID      string     `json:"vehicle_id" schema:"vehicle_id"`
	DetectedUserID string     `json:"detected_user_id" schema:"detected_user_id"`
	Proximity      Proximity  `json:"proximity" schema:"proximity"`
	Since          *time.Time `json:"since" schema:"since"`
	Limit          int        `json:"limit" schema:"limit"`
}
