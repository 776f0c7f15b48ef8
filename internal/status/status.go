// Package status provides a thread-safe status tracker for a running teleop program.
// It is read by the HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/teleop/internal/telemetry"
)

// Phase is the program lifecycle phase.
type Phase string

const (
	PhaseInit    Phase = "INIT"    // bound, waiting for start
	PhaseRunning Phase = "RUNNING" // control loop active
	PhaseStopped Phase = "STOPPED" // loop ended, motors zeroed
)

// Config contains runtime configuration for display.
type Config struct {
	Program     string
	Backend     string
	Lifecycle   string
	LoopMs      int64
	TelemetryMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of program state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Phase            Phase
	StopReason       string
	Ticks            int
	Errors           int
	LastError        string
	InitTime         time.Time
	StartTime        time.Time // zero until the program starts
	StopTime         time.Time // zero until the program stops
	Now              time.Time
	MQTTConnected    bool
	GamepadConnected bool
	Frame            telemetry.Frame
	Config           Config
}

// Uptime returns the duration since the process initialised.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.InitTime)
}

// RunTime returns how long the control loop has been (or was) running.
func (s Snapshot) RunTime() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	end := s.Now
	if !s.StopTime.IsZero() {
		end = s.StopTime
	}
	return end.Sub(s.StartTime)
}

// Tracker holds mutable program state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker in PhaseInit.
func NewTracker(initTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:    PhaseInit,
			InitTime: initTime,
			Config:   cfg,
		},
	}
}

// Start marks the control loop as running.
func (t *Tracker) Start(at time.Time) {
	t.mu.Lock()
	t.snap.Phase = PhaseRunning
	t.snap.StartTime = at
	t.mu.Unlock()
}

// Stop marks the control loop as stopped.
func (t *Tracker) Stop(at time.Time, reason string) {
	t.mu.Lock()
	t.snap.Phase = PhaseStopped
	t.snap.StopTime = at
	t.snap.StopReason = reason
	t.mu.Unlock()
}

// Update stores the latest telemetry frame. Called from the loop on every tick.
func (t *Tracker) Update(frame telemetry.Frame) error {
	t.mu.Lock()
	t.snap.Frame = frame
	t.snap.Ticks++
	t.mu.Unlock()
	return nil
}

// RecordError counts a recovered per-tick error.
func (t *Tracker) RecordError(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	t.snap.Errors++
	t.snap.LastError = err.Error()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetGamepadConnected sets whether a driver station is attached.
func (t *Tracker) SetGamepadConnected(connected bool) {
	t.mu.Lock()
	t.snap.GamepadConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the program state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Frame.Lines = append([]telemetry.Line(nil), t.snap.Frame.Lines...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
