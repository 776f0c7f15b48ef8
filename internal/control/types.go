// Package control contains the pure per-tick actuator logic of the teleop programs.
// This package has NO external dependencies (no hardware, transport, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package control

import "time"

// Logical device names, as bound by the hardware map.
const (
	MotorLeft      = "left"
	MotorRight     = "right"
	MotorLeftLift  = "leftLift"
	MotorRightLift = "rightLift"
	MotorCollector = "collector"
	MotorHook      = "hook"

	ServoFilterLeft   = "filterLeft"
	ServoFilterRight  = "filterRight"
	ServoStorageLeft  = "storageLeft"
	ServoStorageRight = "storageRight"
	ServoClawLeft     = "clawLeft"
	ServoClawRight    = "clawRight"
)

// DriveMotors lists every motor the drive program commands.
var DriveMotors = []string{MotorLeft, MotorRight, MotorLeftLift, MotorRightLift, MotorCollector, MotorHook}

// DriveServos lists every servo the drive program commands.
var DriveServos = []string{
	ServoFilterLeft, ServoFilterRight,
	ServoStorageLeft, ServoStorageRight,
	ServoClawLeft, ServoClawRight,
}

// Gamepad is one sample of a driver's controller.
// Sticks are in [-1, 1] with up reported as negative Y, triggers in [0, 1].
type Gamepad struct {
	LeftStickX   float64 `json:"left_stick_x"`
	LeftStickY   float64 `json:"left_stick_y"`
	RightStickX  float64 `json:"right_stick_x"`
	RightStickY  float64 `json:"right_stick_y"`
	LeftTrigger  float64 `json:"left_trigger"`
	RightTrigger float64 `json:"right_trigger"`

	A bool `json:"a"`
	B bool `json:"b"`
	X bool `json:"x"`
	Y bool `json:"y"`

	DpadUp    bool `json:"dpad_up"`
	DpadDown  bool `json:"dpad_down"`
	DpadLeft  bool `json:"dpad_left"`
	DpadRight bool `json:"dpad_right"`

	LeftBumper  bool `json:"left_bumper"`
	RightBumper bool `json:"right_bumper"`

	Back  bool `json:"back"`
	Start bool `json:"start"`
}

// Button identifies a digital input of a Gamepad.
type Button string

const (
	ButtonA           Button = "a"
	ButtonB           Button = "b"
	ButtonX           Button = "x"
	ButtonY           Button = "y"
	ButtonDpadUp      Button = "dpad_up"
	ButtonDpadDown    Button = "dpad_down"
	ButtonDpadLeft    Button = "dpad_left"
	ButtonDpadRight   Button = "dpad_right"
	ButtonLeftBumper  Button = "left_bumper"
	ButtonRightBumper Button = "right_bumper"
	ButtonBack        Button = "back"
	ButtonStart       Button = "start"
)

// Pressed reports whether button b is held in this sample.
// Unknown buttons are never pressed.
func (g Gamepad) Pressed(b Button) bool {
	switch b {
	case ButtonA:
		return g.A
	case ButtonB:
		return g.B
	case ButtonX:
		return g.X
	case ButtonY:
		return g.Y
	case ButtonDpadUp:
		return g.DpadUp
	case ButtonDpadDown:
		return g.DpadDown
	case ButtonDpadLeft:
		return g.DpadLeft
	case ButtonDpadRight:
		return g.DpadRight
	case ButtonLeftBumper:
		return g.LeftBumper
	case ButtonRightBumper:
		return g.RightBumper
	case ButtonBack:
		return g.Back
	case ButtonStart:
		return g.Start
	}
	return false
}

// MotorReading is the sensed state of a motor for one tick.
type MotorReading struct {
	Position int     // encoder ticks
	Velocity float64 // encoder ticks per second
}

// Input is everything a program sees at one control tick.
type Input struct {
	Driver1 Gamepad
	Driver2 Gamepad
	Motors  map[string]MotorReading
	Time    time.Time
}

// Position returns the named motor's encoder position, invalid when the
// motor has no reading this tick.
func (in Input) Position(name string) Position {
	r, ok := in.Motors[name]
	return Position{Ticks: r.Position, Valid: ok}
}

// RunMode selects how a motor interprets its commanded power.
type RunMode string

const (
	RunWithoutEncoder RunMode = "RUN_WITHOUT_ENCODER"
	RunToPosition     RunMode = "RUN_TO_POSITION"
)

// MotorCommand is the per-tick command for a single motor.
// Target is only meaningful in RunToPosition mode.
type MotorCommand struct {
	Mode   RunMode
	Power  float64
	Target int
}

// Direct returns a direct-power command with power clamped to [-1, 1].
func Direct(power float64) MotorCommand {
	return MotorCommand{Mode: RunWithoutEncoder, Power: ClampPower(power)}
}

// HoldAt returns a run-to-position command with power clamped to [-1, 1].
func HoldAt(target int, power float64) MotorCommand {
	return MotorCommand{Mode: RunToPosition, Power: ClampPower(power), Target: target}
}

// MotorWrite addresses a MotorCommand to a named motor.
type MotorWrite struct {
	Name    string
	Command MotorCommand
}

// ServoWrite sets a named servo to a position in [0, 1].
type ServoWrite struct {
	Name     string
	Position float64
}

// Output is everything a program commands at one control tick.
// Motors are commanded every tick; Servos only lists positions that changed.
type Output struct {
	Motors []MotorWrite
	Servos []ServoWrite
}

// Motor returns the command written to the named motor, if any.
func (o Output) Motor(name string) (MotorCommand, bool) {
	for _, w := range o.Motors {
		if w.Name == name {
			return w.Command, true
		}
	}
	return MotorCommand{}, false
}

func (o *Output) motor(name string, cmd MotorCommand) {
	o.Motors = append(o.Motors, MotorWrite{Name: name, Command: cmd})
}

func (o *Output) servo(name string, pos float64) {
	o.Servos = append(o.Servos, ServoWrite{Name: name, Position: ClampPosition(pos)})
}

// ClampPower limits a motor power to [-1, 1].
func ClampPower(p float64) float64 {
	return clamp(p, -1, 1)
}

// ClampPosition limits a servo position to [0, 1].
func ClampPosition(p float64) float64 {
	return clamp(p, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
