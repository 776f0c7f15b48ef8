package hardware

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sweeney/teleop/internal/control"
)

// FakeBackend is an in-memory backend that records every write.
// Only devices added with AddMotor or AddServo can be bound.
type FakeBackend struct {
	mu     sync.Mutex
	motors map[string]*FakeMotor
	servos map[string]*FakeServo
}

// NewFakeBackend creates a backend with the given motors and servos.
func NewFakeBackend(motors, servos []string) *FakeBackend {
	b := &FakeBackend{
		motors: make(map[string]*FakeMotor),
		servos: make(map[string]*FakeServo),
	}
	for _, n := range motors {
		b.AddMotor(n)
	}
	for _, n := range servos {
		b.AddServo(n)
	}
	return b
}

// AddMotor registers a fake motor.
func (b *FakeBackend) AddMotor(name string) *FakeMotor {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := &FakeMotor{mode: control.RunWithoutEncoder}
	b.motors[name] = m
	return m
}

// AddServo registers a fake servo.
func (b *FakeBackend) AddServo(name string) *FakeServo {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &FakeServo{}
	b.servos[name] = s
	return s
}

// Motor implements Backend.
func (b *FakeBackend) Motor(name string) (Motor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.motors[name]
	if !ok {
		return nil, fmt.Errorf("fake motor %q: %w", name, ErrDeviceNotFound)
	}
	return m, nil
}

// Servo implements Backend.
func (b *FakeBackend) Servo(name string) (Servo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.servos[name]
	if !ok {
		return nil, fmt.Errorf("fake servo %q: %w", name, ErrDeviceNotFound)
	}
	return s, nil
}

// FakeMotor returns the raw fake behind a name, bypassing any reversal.
func (b *FakeBackend) FakeMotor(name string) *FakeMotor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motors[name]
}

// FakeServo returns the raw fake behind a name.
func (b *FakeBackend) FakeServo(name string) *FakeServo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.servos[name]
}

// MotorNames returns the registered motor names, sorted.
func (b *FakeBackend) MotorNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.motors))
	for n := range b.motors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FakeMotor holds the last commanded values and a settable encoder.
type FakeMotor struct {
	mu       sync.Mutex
	power    float64
	mode     control.RunMode
	target   int
	brake    bool
	position int
	velocity float64
	writes   int
	err      error
}

func (m *FakeMotor) SetPower(power float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.power = power
	m.writes++
	return nil
}

func (m *FakeMotor) SetMode(mode control.RunMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.mode = mode
	return nil
}

func (m *FakeMotor) SetTargetPosition(target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.target = target
	return nil
}

func (m *FakeMotor) SetBrake(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brake = on
	return nil
}

func (m *FakeMotor) Position() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position, m.err
}

func (m *FakeMotor) Velocity() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.velocity, m.err
}

// SetEncoder sets what the next Position and Velocity calls return.
func (m *FakeMotor) SetEncoder(position int, velocity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = position
	m.velocity = velocity
}

// SetError makes every subsequent call fail with err (nil clears it).
func (m *FakeMotor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Command returns the last commanded mode, power and target.
func (m *FakeMotor) Command() control.MotorCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return control.MotorCommand{Mode: m.mode, Power: m.power, Target: m.target}
}

// Brake reports whether brake-on-zero was enabled.
func (m *FakeMotor) Brake() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brake
}

// Writes returns how many times power was set.
func (m *FakeMotor) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FakeServo records every commanded position.
type FakeServo struct {
	mu      sync.Mutex
	history []float64
}

func (s *FakeServo) SetPosition(pos float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, pos)
	return nil
}

func (s *FakeServo) Position() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return 0, nil
	}
	return s.history[len(s.history)-1], nil
}

// History returns a copy of every commanded position, oldest first.
func (s *FakeServo) History() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.history))
	copy(out, s.history)
	return out
}
