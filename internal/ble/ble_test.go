package ble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cardrop/proximity-hub/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rssi int
		want models.Proximity
	}{
		{"strong signal", -40, models.ProximityVeryClose},
		{"very close boundary", -60, models.ProximityVeryClose},
		{"just past very close boundary", -61, models.ProximityClose},
		{"close boundary", -75, models.ProximityClose},
		{"just past close boundary", -76, models.ProximityNearby},
		{"weak signal", -90, models.ProximityNearby},
		{"no lower bound", -200, models.ProximityNearby},
		{"implausibly strong", 0, models.ProximityVeryClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.rssi))
		})
	}
}

func TestMatchesServiceUUID(t *testing.T) {
	assert.True(t, MatchesServiceUUID(ServiceUUID))
	assert.True(t, MatchesServiceUUID(strings.ToLower(ServiceUUID)))
	assert.False(t, MatchesServiceUUID("0000180F-0000-1000-8000-00805F9B34FB"))
	assert.False(t, MatchesServiceUUID("not-a-uuid"))
	assert.False(t, MatchesServiceUUID(""))
}
