package control

// Hold remembers the encoder target of a position-held mechanism.
// The zero value has no target.
type Hold struct {
	target int
	set    bool
}

// Capture stores pos as the target if none is held and returns the target.
func (h *Hold) Capture(pos int) int {
	if !h.set {
		h.target = pos
		h.set = true
	}
	return h.target
}

// Clear drops the held target.
func (h *Hold) Clear() {
	h.target = 0
	h.set = false
}

// Target returns the held target and whether one is set.
func (h Hold) Target() (int, bool) {
	return h.target, h.set
}

// Position is an encoder position for one tick. Valid is false when the
// read failed and no position is known.
type Position struct {
	Ticks int
	Valid bool
}

// Known returns a valid position.
func Known(ticks int) Position {
	return Position{Ticks: ticks, Valid: true}
}

// holdAt commands the held target, capturing pos+offset first if none is held.
// With no target and no valid position it commands zero power for the tick
// and captures on the next tick that has a reading.
func holdAt(h *Hold, pos Position, offset int, power float64) MotorCommand {
	if t, ok := h.Target(); ok {
		return HoldAt(t, power)
	}
	if !pos.Valid {
		return Direct(0)
	}
	return HoldAt(h.Capture(pos.Ticks+offset), power)
}

// Lift drives the two slide motors together and holds them when released.
type Lift struct {
	cfg   LiftConfig
	left  Hold
	right Hold
}

// NewLift creates a lift with no held targets.
func NewLift(cfg LiftConfig) *Lift {
	return &Lift{cfg: cfg}
}

// LiftCommand is the per-tick result of Lift.Update.
type LiftCommand struct {
	Left   MotorCommand
	Right  MotorCommand
	Power  float64 // manual power, 0 while holding
	Manual bool
}

// Update maps the raw stick (up is negative) and encoder readings to commands.
func (l *Lift) Update(stickY float64, leftPos, rightPos Position) LiftCommand {
	if stickY != 0 {
		power := -stickY * l.cfg.Multiplier
		l.left.Clear()
		l.right.Clear()
		return LiftCommand{
			Left:   Direct(power),
			Right:  Direct(power),
			Power:  power,
			Manual: true,
		}
	}

	return LiftCommand{
		Left:  holdAt(&l.left, leftPos, 0, l.cfg.HoldPower),
		Right: holdAt(&l.right, rightPos, 0, l.cfg.HoldPower),
	}
}

// Targets returns the held targets of the left and right slide.
func (l *Lift) Targets() (left, right Hold) {
	return l.left, l.right
}

// Hook follows the lift as its slave, or its own stick when one is moved.
type Hook struct {
	cfg  HookConfig
	hold Hold
}

// NewHook creates a hook with no held target.
func NewHook(cfg HookConfig) *Hook {
	return &Hook{cfg: cfg}
}

// HookCommand is the per-tick result of Hook.Update.
type HookCommand struct {
	Command MotorCommand
	Manual  bool
}

// Update derives the hook command from the lift's manual power, the hook's
// own stick (up is negative) and the hook encoder.
func (h *Hook) Update(liftPower, stickY float64, pos Position) HookCommand {
	input := liftPower
	if stickY != 0 {
		input = -stickY
	}

	if input != 0 {
		h.hold.Clear()
		mlt := h.cfg.DownMultiplier
		if input > 0 {
			mlt = h.cfg.UpMultiplier
		}
		return HookCommand{Command: Direct(input * mlt), Manual: true}
	}

	// The release offset is part of the captured target, so it lands once per hold.
	return HookCommand{Command: holdAt(&h.hold, pos, h.cfg.ReleaseTicks, h.cfg.HoldPower)}
}

// Target returns the held hook target.
func (h *Hook) Target() Hold {
	return h.hold
}
