package ble

import (
	"github.com/google/uuid"

	"github.com/cardrop/proximity-hub/internal/models"
)

// ServiceUUID is the fixed CarDrop beacon service identifier. It is constant
// across all deployments; scanners and the hub must agree on this exact value
// to interoperate.
const ServiceUUID = "E2C56DB5-DFFB-48D2-B060-D0F5A71096E0"

// RSSI classification boundaries in dBm. Boundary values belong to the
// stronger-signal bucket.
const (
	RSSIVeryClose = -60
	RSSIClose     = -75
)

var serviceUUID = uuid.MustParse(ServiceUUID)

// Classify maps an RSSI reading to a proximity bucket. Every call is
// independent and stateless: no smoothing, filtering, or hysteresis.
// There is no lower bound; arbitrarily weak signals still classify as
// nearby rather than "out of range".
func Classify(rssi int) models.Proximity {
	switch {
	case rssi >= RSSIVeryClose:
		return models.ProximityVeryClose
	case rssi >= RSSIClose:
		return models.ProximityClose
	default:
		return models.ProximityNearby
	}
}

// MatchesServiceUUID reports whether a raw advertised identifier is the
// CarDrop beacon service UUID. Comparison is case-insensitive; malformed
// identifiers never match.
func MatchesServiceUUID(raw string) bool {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return false
	}
	return parsed == serviceUUID
}
