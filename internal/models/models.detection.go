package models

import "time"

// Detection is a persisted record of one user's scanner observing another
// user's vehicle beacon. Rows are immutable once written.
type Detection struct {
	ID                string    `json:"id" db:"id" readxs:"*" writexs:"*"`
	DetectorUserID    string    `json:"detector_user_id" db:"detector_user_id" readxs:"*" writexs:"*"`
	DetectedVehicleID string    `json:"detected_vehicle_id" db:"detected_vehicle_id" readxs:"*" writexs:"*"`
	DetectedUserID    string    `json:"detected_user_id" db:"detected_user_id" readxs:"*" writexs:"*"`
	RSSI              int       `json:"rssi" db:"rssi" readxs:"*" writexs:"*"`
	Proximity         Proximity `json:"proximity" db:"proximity" readxs:"*" writexs:"*"`
	Location          string    `json:"location,omitempty" db:"location" readxs:"owner,system,admin" writexs:"owner,system,admin"`
	DetectedAt        time.Time `json:"detected_at" db:"detected_at" readxs:"*" writexs:"*"`
}

// VehicleSnapshot is the denormalized vehicle view attached to a detection.
type VehicleSnapshot struct {
	VehicleID    string `json:"vehicle_id" db:"id"`
	Make         string `json:"make" db:"make"`
	Model        string `json:"model" db:"model"`
	Year         int    `json:"year" db:"year"`
	PrimaryImage string `json:"primary_image,omitempty" db:"primary_image"`
}

// ProfileSnapshot is the denormalized owner view attached to a detection.
type ProfileSnapshot struct {
	Username    string `json:"username" db:"username"`
	DisplayName string `json:"display_name" db:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty" db:"avatar_url"`
}

// EnrichedDetection joins a detection with snapshots of the detected
// vehicle and its owner, as returned by the history query.
type EnrichedDetection struct {
	Detection
	Vehicle VehicleSnapshot `json:"vehicle" db:"vehicle"`
	Profile ProfileSnapshot `json:"profile" db:"profile"`
}
