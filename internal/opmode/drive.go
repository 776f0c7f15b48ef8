package opmode

import (
	"time"

	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/telemetry"
)

// Drive is the season teleop program.
type Drive struct {
	cfg   control.Config
	robot *control.Robot
	last  control.Input
	servo map[string]float64
}

// NewDrive creates the drive program with the given tuning.
func NewDrive(cfg control.Config) *Drive {
	return &Drive{cfg: cfg}
}

func (d *Drive) Name() string     { return "drive" }
func (d *Drive) Motors() []string { return control.DriveMotors }
func (d *Drive) Servos() []string { return control.DriveServos }

// Start resets every mechanism to its start default.
func (d *Drive) Start(at time.Time, servos map[string]float64) error {
	d.robot = control.NewRobot(d.cfg, at)
	d.last = control.Input{}
	d.servo = make(map[string]float64, len(servos))
	for k, v := range servos {
		d.servo[k] = v
	}
	return nil
}

// Step runs driver 1 then driver 2.
func (d *Drive) Step(in control.Input, out *control.Output) bool {
	d.robot.Driver1(in, out)
	d.robot.Driver2(in, out)
	d.last = in
	for _, w := range out.Servos {
		d.servo[w.Name] = w.Position
	}
	return false
}

// Robot exposes the actuator state for tests and tooling.
func (d *Drive) Robot() *control.Robot {
	return d.robot
}

// Report writes the DRIVETRAIN, HOOK, COLLECTOR, SLIDES and SERVOS sections.
// Powers are measured, as encoder velocity over the motor's full-speed rate.
func (d *Drive) Report(b *telemetry.Builder) {
	if d.robot == nil {
		return
	}
	s := d.robot.State()
	m := d.last.Motors

	b.Section("DRIVETRAIN")
	b.Add("Mode", s.DriveMode)
	b.Add("Left Power", measured(m[control.MotorLeft], d.cfg.Drive.MotorType))
	b.Add("Right Power", measured(m[control.MotorRight], d.cfg.Drive.MotorType))

	b.Section("HOOK")
	if s.Hook.Manual {
		b.Add("Power", measured(m[control.MotorHook], d.cfg.Hook.MotorType))
	} else if target, ok := s.HookHold.Target(); ok {
		b.Add("Target", target)
	}

	b.Section("COLLECTOR")
	b.Add("On", s.CollectorOn)
	b.Add("State", s.CollectorState)
	b.Add("Power", measured(m[control.MotorCollector], d.cfg.Collector.MotorType))
	if s.CollectorState == control.CollectorStallReverse {
		b.Add("Stall check", d.last.Time.Sub(s.Stall.LastStall))
	} else {
		b.Add("Stall check", d.last.Time.Sub(s.Stall.LastMoving))
	}

	b.Section("SLIDES")
	if s.Lift.Manual {
		b.Add("Mode", control.RunWithoutEncoder)
		b.Add("Power", measured(m[control.MotorRightLift], d.cfg.Lift.MotorType))
	} else {
		b.Add("Mode", control.RunToPosition)
		if t, ok := s.LeftLiftHold.Target(); ok {
			b.Add("Left target", t)
		}
		if t, ok := s.RightLiftHold.Target(); ok {
			b.Add("Right target", t)
		}
	}

	b.Section("SERVOS")
	b.Add("Storage state", s.Storage)
	b.Add("Left Storage Servo", d.servo[control.ServoStorageLeft])
	b.Add("Right Storage Servo", d.servo[control.ServoStorageRight])
	filter := string(s.Filter)
	if s.FilterAligned {
		filter = "ALIGN_WITH_HOOK"
	}
	b.Add("Filter state", filter)
	b.Add("Left Filter Servo", d.servo[control.ServoFilterLeft])
	b.Add("Right Filter Servo", d.servo[control.ServoFilterRight])
	b.Add("Claw state", s.Claw)
}

func measured(r control.MotorReading, mt control.MotorType) float64 {
	tps := mt.TicksPerSecond()
	if tps == 0 {
		return 0
	}
	return r.Velocity / tps
}
