package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardrop/proximity-hub/internal/ble"
	"github.com/cardrop/proximity-hub/internal/config"
	"github.com/cardrop/proximity-hub/internal/models"
)

type recordedCall struct {
	detectorUserID string
	vehicleID      string
	detectedUserID string
	rssi           int
	location       string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordDetection(ctx context.Context, vehicleID, detectedUserID string, rssi int, location string) (bool, error) {
	detector := ""
	if user := models.UserFromContext(ctx); user != nil {
		detector = user.ID
	}

	r.mu.Lock()
	r.calls = append(r.calls, recordedCall{
		detectorUserID: detector,
		vehicleID:      vehicleID,
		detectedUserID: detectedUserID,
		rssi:           rssi,
		location:       location,
	})
	r.mu.Unlock()
	return true, nil
}

func newTestIngestor(buffer int) (*Ingestor, *fakeRecorder) {
	recorder := &fakeRecorder{}
	return New(config.MQTTConfig{}, recorder, buffer), recorder
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return payload
}

type stubToken struct {
	completes bool
	err       error
}

func (t *stubToken) Wait() bool                     { return t.completes }
func (t *stubToken) WaitTimeout(time.Duration) bool { return t.completes }
func (t *stubToken) Error() error                   { return t.err }
func (t *stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completes {
		close(ch)
	}
	return ch
}

func TestWaitToken(t *testing.T) {
	assert.NoError(t, waitToken(&stubToken{completes: true}, time.Second))

	assert.EqualError(t,
		waitToken(&stubToken{completes: true, err: errors.New("bad credentials")}, time.Second),
		"bad credentials")

	// A timed-out token is an error, not a silent pass.
	err := waitToken(&stubToken{completes: false}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestDetectorFromTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{"valid topic", "cardrop/scanners/user_1/sightings", "user_1"},
		{"wrong prefix", "other/scanners/user_1/sightings", ""},
		{"wrong suffix", "cardrop/scanners/user_1/status", ""},
		{"missing segment", "cardrop/scanners/sightings", ""},
		{"extra segment", "cardrop/scanners/user_1/sightings/extra", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectorFromTopic(tt.topic))
		})
	}
}

func TestEnqueueAcceptsCarDropBeacons(t *testing.T) {
	ingestor, recorder := newTestIngestor(4)

	payload := mustMarshal(t, Sighting{
		BeaconRecord: models.BeaconRecord{
			ServiceUUID: ble.ServiceUUID,
			DeviceID:    "dev_1",
			RSSI:        -58,
		},
		VehicleID:      "veh_1",
		DetectedUserID: "user_2",
		Location:       "parking lot",
	})
	ingestor.enqueue("user_1", payload)

	require.Len(t, ingestor.queue, 1)
	ingestor.record(<-ingestor.queue)

	require.Len(t, recorder.calls, 1)
	call := recorder.calls[0]
	assert.Equal(t, "user_1", call.detectorUserID)
	assert.Equal(t, "veh_1", call.vehicleID)
	assert.Equal(t, "user_2", call.detectedUserID)
	assert.Equal(t, -58, call.rssi)
	assert.Equal(t, "parking lot", call.location)
}

func TestEnqueueRejectsForeignBeacons(t *testing.T) {
	ingestor, _ := newTestIngestor(4)

	payload := mustMarshal(t, Sighting{
		BeaconRecord: models.BeaconRecord{
			ServiceUUID: "F7826DA6-4FA2-4E98-8024-BC5B71E0893E",
			RSSI:        -58,
		},
		VehicleID:      "veh_1",
		DetectedUserID: "user_2",
	})
	ingestor.enqueue("user_1", payload)

	assert.Empty(t, ingestor.queue)
	assert.Equal(t, uint64(1), ingestor.Rejected())
}

func TestEnqueueRejectsMalformedSightings(t *testing.T) {
	ingestor, _ := newTestIngestor(4)

	ingestor.enqueue("user_1", []byte("not json"))
	assert.Equal(t, uint64(1), ingestor.Rejected())

	// Recognized beacon but the scanner failed to resolve the vehicle.
	payload := mustMarshal(t, Sighting{
		BeaconRecord: models.BeaconRecord{ServiceUUID: ble.ServiceUUID, RSSI: -58},
	})
	ingestor.enqueue("user_1", payload)
	assert.Equal(t, uint64(2), ingestor.Rejected())
	assert.Empty(t, ingestor.queue)
}

func TestEnqueueDropsOnBackpressure(t *testing.T) {
	ingestor, _ := newTestIngestor(1)

	payload := mustMarshal(t, Sighting{
		BeaconRecord:   models.BeaconRecord{ServiceUUID: ble.ServiceUUID, RSSI: -58},
		VehicleID:      "veh_1",
		DetectedUserID: "user_2",
	})

	ingestor.enqueue("user_1", payload)
	ingestor.enqueue("user_1", payload)

	assert.Len(t, ingestor.queue, 1)
	assert.Equal(t, uint64(1), ingestor.Dropped())
}
