package hardware

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sweeney/teleop/internal/control"
)

const (
	// DefaultTimeConstant is the sim motors' first-order response time.
	DefaultTimeConstant = 50 * time.Millisecond
	// DefaultPositionGain converts a position error in ticks to power in run-to-position mode.
	DefaultPositionGain = 0.01

	maxSimStep = 5 * time.Millisecond
)

// SimConfig describes the simulated robot.
type SimConfig struct {
	Motors       map[string]control.MotorType
	Servos       []string
	TimeConstant time.Duration
	PositionGain float64
}

// Sim is a backend whose motors follow a first-order speed model.
// Time only moves when Advance is called.
type Sim struct {
	mu     sync.Mutex
	tau    float64
	gain   float64
	motors map[string]*SimMotor
	servos map[string]*FakeServo
	last   time.Time
}

// NewSim builds a simulated robot. Motors with an unknown type run at HD Hex speed.
func NewSim(cfg SimConfig) *Sim {
	if cfg.TimeConstant <= 0 {
		cfg.TimeConstant = DefaultTimeConstant
	}
	if cfg.PositionGain <= 0 {
		cfg.PositionGain = DefaultPositionGain
	}
	s := &Sim{
		tau:    cfg.TimeConstant.Seconds(),
		gain:   cfg.PositionGain,
		motors: make(map[string]*SimMotor, len(cfg.Motors)),
		servos: make(map[string]*FakeServo, len(cfg.Servos)),
	}
	for name, mt := range cfg.Motors {
		rate := mt.TicksPerSecond()
		if rate == 0 {
			rate = control.HDHex.TicksPerSecond()
		}
		s.motors[name] = &SimMotor{sim: s, maxRate: rate, mode: control.RunWithoutEncoder}
	}
	for _, name := range cfg.Servos {
		s.servos[name] = &FakeServo{}
	}
	return s
}

// Motor implements Backend.
func (s *Sim) Motor(name string) (Motor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.motors[name]
	if !ok {
		return nil, fmt.Errorf("sim motor %q: %w", name, ErrDeviceNotFound)
	}
	return m, nil
}

// Servo implements Backend.
func (s *Sim) Servo(name string) (Servo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.servos[name]
	if !ok {
		return nil, fmt.Errorf("sim servo %q: %w", name, ErrDeviceNotFound)
	}
	return sv, nil
}

// SimMotor returns the named simulated motor, or nil.
func (s *Sim) SimMotor(name string) *SimMotor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motors[name]
}

// Jam stalls or frees a motor's output shaft.
func (s *Sim) Jam(name string, jammed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.motors[name]
	if !ok {
		return fmt.Errorf("sim motor %q: %w", name, ErrDeviceNotFound)
	}
	m.jammed = jammed
	if jammed {
		m.velocity = 0
	}
	return nil
}

// Advance integrates every motor up to now. The first call only sets the clock.
func (s *Sim) Advance(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last.IsZero() || !now.After(s.last) {
		if s.last.IsZero() {
			s.last = now
		}
		return
	}

	remaining := now.Sub(s.last)
	for remaining > 0 {
		step := remaining
		if step > maxSimStep {
			step = maxSimStep
		}
		dt := step.Seconds()
		for _, m := range s.motors {
			m.integrate(dt, s.tau, s.gain)
		}
		remaining -= step
	}
	s.last = now
}

// SimMotor is one simulated motor. State is guarded by the owning Sim.
type SimMotor struct {
	sim      *Sim
	maxRate  float64
	mode     control.RunMode
	power    float64
	target   int
	brake    bool
	jammed   bool
	position float64
	velocity float64
}

func (m *SimMotor) integrate(dt, tau, gain float64) {
	if m.jammed {
		m.velocity = 0
		return
	}

	drive := m.power
	if m.mode == control.RunToPosition {
		// Proportional loop limited by the commanded power magnitude.
		limit := math.Abs(m.power)
		drive = clampAbs(gain*(float64(m.target)-m.position), limit)
	}

	want := drive * m.maxRate
	if drive == 0 && m.brake {
		m.velocity = 0
	} else {
		m.velocity += (want - m.velocity) * math.Min(dt/tau, 1)
	}
	m.position += m.velocity * dt
}

func clampAbs(x, limit float64) float64 {
	if x > limit {
		return limit
	}
	if x < -limit {
		return -limit
	}
	return x
}

func (m *SimMotor) SetPower(power float64) error {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	m.power = control.ClampPower(power)
	return nil
}

func (m *SimMotor) SetMode(mode control.RunMode) error {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	m.mode = mode
	return nil
}

func (m *SimMotor) SetTargetPosition(target int) error {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	m.target = target
	return nil
}

func (m *SimMotor) SetBrake(on bool) error {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	m.brake = on
	return nil
}

func (m *SimMotor) Position() (int, error) {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	return int(math.Round(m.position)), nil
}

func (m *SimMotor) Velocity() (float64, error) {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	return m.velocity, nil
}
