// Package mqtt publishes telemetry frames and lifecycle events, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/teleop/internal/telemetry"
)

// TopicTelemetry carries one message per published telemetry frame.
const TopicTelemetry = "teleop/telemetry"

// TopicSystem carries program lifecycle events.
const TopicSystem = "teleop/system"

// Lifecycle event names.
const (
	EventStartup     = "STARTUP"
	EventStart       = "START"
	EventStop        = "STOP"
	EventShutdown    = "SHUTDOWN"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Publisher publishes to MQTT.
type Publisher interface {
	// PublishTelemetry sends a telemetry frame (QoS 0).
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(frame telemetry.Frame) error

	// PublishSystem sends a lifecycle event (QoS 1).
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a program lifecycle event.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g. "STARTUP", "START", "STOP"
	Program   string // e.g. "drive", "tuner"
	Reason    string // e.g. "SIGTERM", "DISABLED" (stop/shutdown only)
	Retained  bool   // Whether the message should be retained by the broker
}

// SystemPayload is the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Program   string `json:"program,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Program:   event.Program,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// TelemetryPayload is the MQTT message payload for a telemetry frame.
type TelemetryPayload struct {
	Telemetry TelemetryPayloadInner `json:"telemetry"`
}

// TelemetryPayloadInner contains the frame in display order.
type TelemetryPayloadInner struct {
	Timestamp string           `json:"timestamp"`
	Program   string           `json:"program"`
	Lines     []telemetry.Line `json:"lines"`
}

// FormatTelemetryPayload creates the JSON payload for a telemetry frame.
// Timestamps keep millisecond precision.
func FormatTelemetryPayload(frame telemetry.Frame) ([]byte, error) {
	lines := frame.Lines
	if lines == nil {
		lines = []telemetry.Line{}
	}
	payload := TelemetryPayload{
		Telemetry: TelemetryPayloadInner{
			Timestamp: frame.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Program:   frame.Program,
			Lines:     lines,
		},
	}
	return json.Marshal(payload)
}

// ParseTelemetryPayload decodes a telemetry message back into a frame.
func ParseTelemetryPayload(data []byte) (telemetry.Frame, error) {
	var p TelemetryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return telemetry.Frame{}, fmt.Errorf("decode telemetry: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, p.Telemetry.Timestamp)
	if err != nil {
		return telemetry.Frame{}, fmt.Errorf("decode telemetry timestamp: %w", err)
	}
	return telemetry.Frame{Program: p.Telemetry.Program, Time: t, Lines: p.Telemetry.Lines}, nil
}

// Throttle is a telemetry.Sink that forwards at most one frame per interval,
// judged by frame time.
type Throttle struct {
	pub      Publisher
	interval time.Duration

	mu   sync.Mutex
	last time.Time
	sent int
}

// NewThrottle wraps a publisher. A zero interval forwards every frame.
func NewThrottle(pub Publisher, interval time.Duration) *Throttle {
	return &Throttle{pub: pub, interval: interval}
}

// Update implements telemetry.Sink.
func (t *Throttle) Update(frame telemetry.Frame) error {
	t.mu.Lock()
	if !t.last.IsZero() && frame.Time.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return nil
	}
	t.last = frame.Time
	t.sent++
	t.mu.Unlock()

	return t.pub.PublishTelemetry(frame)
}

// Sent returns how many frames were forwarded.
func (t *Throttle) Sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}
