package control

import "time"

// Robot is the drive program's actuator state for one run.
// Driver1 owns the drivetrain and collector, Driver2 owns the lift, hook and
// servo presets. Each field is written by exactly one of the two stages.
type Robot struct {
	cfg Config

	// Driver 1 stage
	collector *Collector
	left      float64
	right     float64

	// Driver 2 stage
	lift      *Lift
	hook      *Hook
	liftCmd   LiftCommand
	hookCmd   HookCommand
	filter    Filter
	storage   StorageState
	claw      ClawState
	filterOut *PresetApplier[FilterKey]
	storeOut  *PresetApplier[StorageState]
	clawOut   *PresetApplier[ClawState]
}

// NewRobot creates the actuator state with every mechanism at its start default.
func NewRobot(cfg Config, startTime time.Time) *Robot {
	return &Robot{
		cfg:       cfg,
		collector: NewCollector(cfg.Collector, startTime),
		lift:      NewLift(cfg.Lift),
		hook:      NewHook(cfg.Hook),
		filter:    Filter{State: FilterCenter},
		storage:   StorageClosed,
		claw:      ClawClosed,
		filterOut: &PresetApplier[FilterKey]{
			LeftName:  ServoFilterLeft,
			RightName: ServoFilterRight,
			Positions: filterPositions(cfg.Filter),
		},
		storeOut: &PresetApplier[StorageState]{
			LeftName:  ServoStorageLeft,
			RightName: ServoStorageRight,
			Positions: storagePositions(cfg.Storage),
		},
		clawOut: &PresetApplier[ClawState]{
			LeftName:  ServoClawLeft,
			RightName: ServoClawRight,
			Positions: clawPositions(cfg.Claw),
		},
	}
}

// Step runs both driver stages in order and returns the tick's commands.
func (r *Robot) Step(in Input) Output {
	var out Output
	r.Driver1(in, &out)
	r.Driver2(in, &out)
	return out
}

// Driver1 commands the drivetrain and the collector.
func (r *Robot) Driver1(in Input, out *Output) {
	r.left, r.right = Drive(r.cfg.Drive.Mode, in.Driver1, r.cfg.Drive.Multiplier)
	out.motor(MotorLeft, Direct(r.left))
	out.motor(MotorRight, Direct(r.right))

	power := r.collector.Update(in.Driver2.B, in.Motors[MotorCollector].Velocity, in.Time)
	out.motor(MotorCollector, Direct(power))
}

// Driver2 commands the lift, the hook and the servo presets.
func (r *Robot) Driver2(in Input, out *Output) {
	g := in.Driver2

	r.liftCmd = r.lift.Update(g.LeftStickY, in.Position(MotorLeftLift), in.Position(MotorRightLift))
	out.motor(MotorLeftLift, r.liftCmd.Left)
	out.motor(MotorRightLift, r.liftCmd.Right)

	r.hookCmd = r.hook.Update(r.liftCmd.Power, g.RightStickY, in.Position(MotorHook))
	out.motor(MotorHook, r.hookCmd.Command)

	if r.hookCmd.Manual {
		r.filter.Align()
	} else {
		r.filter.Restore()
	}

	r.storage = Resolve(r.storage, g, StorageBindings)
	// Filter presets are ignored while aligned so the prior state comes back on release.
	if !r.filter.Aligned() {
		r.filter.State = Resolve(r.filter.State, g, FilterBindings)
	}
	r.claw = Resolve(r.claw, g, ClawBindings)

	r.filterOut.Apply(r.filter.Key(), out)
	r.storeOut.Apply(r.storage, out)
	r.clawOut.Apply(r.claw, out)
}

// RobotState is a read-only view of the actuator state for telemetry.
type RobotState struct {
	DriveMode      DriveMode
	LeftPower      float64
	RightPower     float64
	CollectorState CollectorState
	CollectorOn    bool
	Stall          StallTracker
	Lift           LiftCommand
	LeftLiftHold   Hold
	RightLiftHold  Hold
	Hook           HookCommand
	HookHold       Hold
	Filter         FilterState
	FilterAligned  bool
	Storage        StorageState
	Claw           ClawState
}

// State returns a copy of the current actuator state.
func (r *Robot) State() RobotState {
	ll, rl := r.lift.Targets()
	return RobotState{
		DriveMode:      r.cfg.Drive.Mode,
		LeftPower:      r.left,
		RightPower:     r.right,
		CollectorState: r.collector.State(),
		CollectorOn:    r.collector.On(),
		Stall:          r.collector.Tracker(),
		Lift:           r.liftCmd,
		LeftLiftHold:   ll,
		RightLiftHold:  rl,
		Hook:           r.hookCmd,
		HookHold:       r.hook.Target(),
		Filter:         r.filter.State,
		FilterAligned:  r.filter.Aligned(),
		Storage:        r.storage,
		Claw:           r.claw,
	}
}

// Config returns the tuning the robot was created with.
func (r *Robot) Config() Config {
	return r.cfg
}
