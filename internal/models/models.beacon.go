package models

// Proximity is the coarse distance bucket derived from a beacon's RSSI.
type Proximity string

const (
	ProximityVeryClose Proximity = "very_close"
	ProximityClose     Proximity = "close"
	ProximityNearby    Proximity = "nearby"
)

// BeaconRecord is a single raw sighting reported by a scanner. It is
// ephemeral: records are classified and either recorded as a Detection
// or dropped, never persisted as-is.
type BeaconRecord struct {
	ServiceUUID string `json:"service_uuid"`
	DeviceID    string `json:"device_id"`
	RSSI        int    `json:"rssi"`
	Major       int    `json:"major,omitempty"`
	Minor       int    `json:"minor,omitempty"`
}
