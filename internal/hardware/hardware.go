// Package hardware binds logical device names to motor and servo handles.
// Backends: Fake for tests, Sim for a simulated robot, Hub for a serial motor hub.
package hardware

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/teleop/internal/control"
)

// ErrDeviceNotFound is returned when a backend has no device with the requested name.
var ErrDeviceNotFound = errors.New("device not found")

// Motor is an encoder-equipped DC motor.
type Motor interface {
	SetPower(power float64) error
	SetMode(mode control.RunMode) error
	SetTargetPosition(target int) error
	// Position returns the encoder position in ticks.
	Position() (int, error)
	// Velocity returns the encoder rate in ticks per second.
	Velocity() (float64, error)
}

// Braker is implemented by motors that can short their windings at zero power.
type Braker interface {
	SetBrake(on bool) error
}

// Servo is a positional servo driven in [0, 1].
type Servo interface {
	SetPosition(pos float64) error
	// Position returns the last commanded position.
	Position() (float64, error)
}

// Backend resolves device names to handles.
type Backend interface {
	Motor(name string) (Motor, error)
	Servo(name string) (Servo, error)
}

// EncoderReader is implemented by motors that sample position and velocity in one query.
type EncoderReader interface {
	Encoder() (position int, velocity float64, err error)
}

// Advancer is implemented by backends that simulate time between ticks.
type Advancer interface {
	Advance(now time.Time)
}

// Options tunes how devices are bound.
type Options struct {
	// Reversed motors have power, target, position and velocity negated.
	Reversed []string
	// Brake motors short their windings at zero power (drivetrain).
	Brake []string
}

// Map holds the bound devices of one program run.
type Map struct {
	backend Backend
	motors  map[string]Motor
	servos  map[string]Servo
	order   []string
}

// Bind resolves every named device once. A missing device is fatal for the run.
func Bind(b Backend, motors, servos []string, opts Options) (*Map, error) {
	reversed := toSet(opts.Reversed)
	brake := toSet(opts.Brake)

	m := &Map{
		backend: b,
		motors:  make(map[string]Motor, len(motors)),
		servos:  make(map[string]Servo, len(servos)),
	}

	for _, name := range motors {
		motor, err := b.Motor(name)
		if err != nil {
			return nil, fmt.Errorf("bind motor %q: %w", name, err)
		}
		if reversed[name] {
			motor = Reverse(motor)
		}
		if brake[name] {
			if br, ok := motor.(Braker); ok {
				if err := br.SetBrake(true); err != nil {
					return nil, fmt.Errorf("brake motor %q: %w", name, err)
				}
			}
		}
		m.motors[name] = motor
		m.order = append(m.order, name)
	}

	for _, name := range servos {
		servo, err := b.Servo(name)
		if err != nil {
			return nil, fmt.Errorf("bind servo %q: %w", name, err)
		}
		m.servos[name] = servo
	}

	return m, nil
}

// Motor returns a bound motor.
func (m *Map) Motor(name string) (Motor, bool) {
	motor, ok := m.motors[name]
	return motor, ok
}

// Servo returns a bound servo.
func (m *Map) Servo(name string) (Servo, bool) {
	servo, ok := m.servos[name]
	return servo, ok
}

// Advance forwards simulated time if the backend runs a simulation.
func (m *Map) Advance(now time.Time) {
	if a, ok := m.backend.(Advancer); ok {
		a.Advance(now)
	}
}

// Read samples every bound motor's encoder.
func (m *Map) Read() (map[string]control.MotorReading, error) {
	out := make(map[string]control.MotorReading, len(m.motors))
	var errs []error
	for _, name := range m.order {
		pos, vel, err := readEncoder(m.motors[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", name, err))
			continue
		}
		out[name] = control.MotorReading{Position: pos, Velocity: vel}
	}
	return out, errors.Join(errs...)
}

// ServoPositions returns the last commanded position of every named servo.
func (m *Map) ServoPositions(names []string) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	for _, name := range names {
		servo, ok := m.servos[name]
		if !ok {
			return nil, fmt.Errorf("servo %q: %w", name, ErrDeviceNotFound)
		}
		pos, err := servo.Position()
		if err != nil {
			return nil, fmt.Errorf("read servo %q: %w", name, err)
		}
		out[name] = pos
	}
	return out, nil
}

// Apply sends one tick of commands. Every write is attempted; failures are joined.
func (m *Map) Apply(out control.Output) error {
	var errs []error
	for _, w := range out.Motors {
		motor, ok := m.motors[w.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("motor %q: %w", w.Name, ErrDeviceNotFound))
			continue
		}
		if err := applyMotor(motor, w.Command); err != nil {
			errs = append(errs, fmt.Errorf("motor %q: %w", w.Name, err))
		}
	}
	for _, w := range out.Servos {
		servo, ok := m.servos[w.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("servo %q: %w", w.Name, ErrDeviceNotFound))
			continue
		}
		if err := servo.SetPosition(w.Position); err != nil {
			errs = append(errs, fmt.Errorf("servo %q: %w", w.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Stop commands zero power to every bound motor.
func (m *Map) Stop() error {
	var errs []error
	for _, name := range m.order {
		if err := applyMotor(m.motors[name], control.Direct(0)); err != nil {
			errs = append(errs, fmt.Errorf("stop %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func applyMotor(motor Motor, cmd control.MotorCommand) error {
	// The target must be in place before switching to run-to-position.
	if cmd.Mode == control.RunToPosition {
		if err := motor.SetTargetPosition(cmd.Target); err != nil {
			return err
		}
	}
	if err := motor.SetMode(cmd.Mode); err != nil {
		return err
	}
	return motor.SetPower(cmd.Power)
}

func readEncoder(motor Motor) (int, float64, error) {
	if er, ok := motor.(EncoderReader); ok {
		return er.Encoder()
	}
	pos, err := motor.Position()
	if err != nil {
		return 0, 0, err
	}
	vel, err := motor.Velocity()
	if err != nil {
		return 0, 0, err
	}
	return pos, vel, nil
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Reverse wraps a motor so that its positive direction is flipped.
func Reverse(m Motor) Motor {
	if r, ok := m.(*reversed); ok {
		return r.Motor
	}
	return &reversed{Motor: m}
}

type reversed struct {
	Motor
}

func (r *reversed) SetPower(power float64) error {
	return r.Motor.SetPower(-power)
}

func (r *reversed) SetTargetPosition(target int) error {
	return r.Motor.SetTargetPosition(-target)
}

func (r *reversed) Position() (int, error) {
	pos, err := r.Motor.Position()
	return -pos, err
}

func (r *reversed) Velocity() (float64, error) {
	vel, err := r.Motor.Velocity()
	return -vel, err
}

func (r *reversed) Encoder() (int, float64, error) {
	pos, vel, err := readEncoder(r.Motor)
	return -pos, -vel, err
}

func (r *reversed) SetBrake(on bool) error {
	if br, ok := r.Motor.(Braker); ok {
		return br.SetBrake(on)
	}
	return nil
}
