package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"

	"github.com/cardrop/proximity-hub/internal/ble"
	"github.com/cardrop/proximity-hub/internal/config"
	"github.com/cardrop/proximity-hub/internal/models"
)

// brokerTimeout bounds connect and subscribe handshakes with the broker.
const brokerTimeout = 10 * time.Second

// waitToken waits for an MQTT operation to complete within the timeout.
// A timed-out token is an error, never a silent pass.
func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}

// DetectionRecorder is the downstream consumer of accepted sightings.
type DetectionRecorder interface {
	RecordDetection(ctx context.Context, vehicleID, detectedUserID string, rssi int, location string) (bool, error)
}

// Sighting is the JSON payload a scanner publishes per discovery callback.
// Scanners resolve beacon major/minor to vehicle and owner before
// publishing; the raw sub-identifiers ride along for diagnostics.
type Sighting struct {
	models.BeaconRecord
	VehicleID      string `json:"vehicle_id"`
	DetectedUserID string `json:"detected_user_id"`
	Location       string `json:"location,omitempty"`
}

type queuedSighting struct {
	detectorUserID string
	sighting       Sighting
}

// Ingestor subscribes to scanner sighting topics, filters to the CarDrop
// service UUID, and feeds accepted records to the detection recorder.
// The MQTT callback only decodes, filters, and enqueues; when the queue is
// full the sighting is dropped rather than blocking the next callback.
// Scan callbacks arrive at a hardware-determined rate the hub does not
// control, and the stream is lossy by nature, so dropping is acceptable.
type Ingestor struct {
	cfg      config.MQTTConfig
	recorder DetectionRecorder
	client   mqtt.Client

	queue    chan queuedSighting
	dropped  atomic.Uint64
	rejected atomic.Uint64

	stop chan struct{}
	done chan struct{}
}

func New(cfg config.MQTTConfig, recorder DetectionRecorder, buffer int) *Ingestor {
	if buffer <= 0 {
		buffer = 256
	}
	return &Ingestor{
		cfg:      cfg,
		recorder: recorder,
		queue:    make(chan queuedSighting, buffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start connects to the broker, subscribes to the sightings topic, and
// launches the recording worker.
func (i *Ingestor) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.BrokerURL).
		SetClientID(i.cfg.ClientID).
		SetUsername(i.cfg.Username).
		SetPassword(i.cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	i.client = mqtt.NewClient(opts)
	if err := waitToken(i.client.Connect(), brokerTimeout); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	if err := waitToken(i.client.Subscribe(i.cfg.SightingsTopic, 0, i.handleMessage), brokerTimeout); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", i.cfg.SightingsTopic, err)
	}

	go i.run()

	nuts.L.Infof("[Ingest] Subscribed to %s on %s", i.cfg.SightingsTopic, i.cfg.BrokerURL)
	return nil
}

// Stop unsubscribes, disconnects, and waits for the worker to drain.
func (i *Ingestor) Stop() {
	if i.client != nil {
		i.client.Unsubscribe(i.cfg.SightingsTopic)
		i.client.Disconnect(250)
	}
	close(i.stop)
	<-i.done
	nuts.L.Infof("[Ingest] Stopped (dropped=%d rejected=%d)", i.dropped.Load(), i.rejected.Load())
}

func (i *Ingestor) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	detectorUserID := detectorFromTopic(msg.Topic())
	if detectorUserID == "" {
		i.rejected.Add(1)
		nuts.L.Warnf("[Ingest] Sighting on unexpected topic %s, dropping", msg.Topic())
		return
	}
	i.enqueue(detectorUserID, msg.Payload())
}

// enqueue decodes and filters one raw sighting. Must stay cheap and
// non-blocking relative to the next scan callback.
func (i *Ingestor) enqueue(detectorUserID string, payload []byte) {
	var sighting Sighting
	if err := json.Unmarshal(payload, &sighting); err != nil {
		i.rejected.Add(1)
		nuts.L.Warnf("[Ingest] Sighting decode failed for %s: %v", detectorUserID, err)
		return
	}

	// Filter to recognized beacons. Foreign BLE advertisements are expected
	// noise, not errors.
	if !ble.MatchesServiceUUID(sighting.ServiceUUID) {
		i.rejected.Add(1)
		return
	}

	if sighting.VehicleID == "" || sighting.DetectedUserID == "" {
		i.rejected.Add(1)
		nuts.L.Warnf("[Ingest] Sighting from %s missing identifiers (device=%s)", detectorUserID, sighting.DeviceID)
		return
	}

	select {
	case i.queue <- queuedSighting{detectorUserID: detectorUserID, sighting: sighting}:
	default:
		i.dropped.Add(1)
	}
}

func (i *Ingestor) run() {
	defer close(i.done)

	for {
		select {
		case <-i.stop:
			return
		case queued := <-i.queue:
			i.record(queued)
		}
	}
}

func (i *Ingestor) record(queued queuedSighting) {
	// The scanner was authenticated by the broker; its identity becomes the
	// acting detector for the recorder's auth check.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = models.WithUser(ctx, &models.UserContext{
		ID:    queued.detectorUserID,
		Roles: []string{"system"},
	})

	sighting := queued.sighting
	recorded, err := i.recorder.RecordDetection(ctx, sighting.VehicleID, sighting.DetectedUserID, sighting.RSSI, sighting.Location)
	if err != nil {
		nuts.L.Warnf("[Ingest] Failed to record detection of %s by %s: %v", sighting.VehicleID, queued.detectorUserID, err)
		return
	}
	if recorded {
		nuts.L.Infof("[Ingest] Recorded detection of %s by %s (rssi=%d, %s)",
			sighting.VehicleID, queued.detectorUserID, sighting.RSSI, ble.Classify(sighting.RSSI))
	}
}

// Dropped returns how many sightings were discarded due to backpressure.
func (i *Ingestor) Dropped() uint64 {
	return i.dropped.Load()
}

// Rejected returns how many sightings failed decoding or filtering.
func (i *Ingestor) Rejected() uint64 {
	return i.rejected.Load()
}

// detectorFromTopic extracts the scanner's user ID from a topic of the form
// cardrop/scanners/<user_id>/sightings.
func detectorFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "cardrop" || parts[1] != "scanners" || parts[3] != "sightings" {
		return ""
	}
	return parts[2]
}
