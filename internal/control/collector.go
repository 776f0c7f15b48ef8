package control

import "time"

// CollectorState is the mode of the collector stall machine.
type CollectorState string

const (
	CollectorRunning      CollectorState = "RUNNING"
	CollectorStallReverse CollectorState = "STALL_REVERSE"
	CollectorOff          CollectorState = "OFF"
)

// StallTracker holds the timestamps the stall machine is driven by.
type StallTracker struct {
	// Last tick the collector was confirmed moving (or entered RUNNING)
	LastMoving time.Time
	// Tick the current reverse pulse started
	LastStall time.Time
}

// Collector runs the intake forward and clears jams with a reverse pulse.
type Collector struct {
	cfg            CollectorConfig
	ticksPerSecond float64
	state          CollectorState
	stall          StallTracker
	toggle         Toggle
}

// NewCollector creates a running collector. The startTime counts as the
// last moment it was seen moving.
func NewCollector(cfg CollectorConfig, startTime time.Time) *Collector {
	return &Collector{
		cfg:            cfg,
		ticksPerSecond: cfg.MotorType.TicksPerSecond(),
		state:          CollectorRunning,
		stall:          StallTracker{LastMoving: startTime},
	}
}

// Update advances the machine by one tick and returns the commanded power.
// togglePressed is the raw button level; velocity is in encoder ticks per second.
func (c *Collector) Update(togglePressed bool, velocity float64, now time.Time) float64 {
	if c.toggle.Rising(togglePressed) {
		if c.state == CollectorOff {
			c.state = CollectorRunning
			c.stall.LastMoving = now
		} else {
			c.state = CollectorOff
		}
	}

	switch c.state {
	case CollectorOff:
		return 0

	case CollectorStallReverse:
		if now.Sub(c.stall.LastStall) < c.cfg.StallRelease {
			return -c.cfg.Power
		}
		c.state = CollectorRunning
		c.stall.LastMoving = now
		return c.cfg.Power
	}

	if c.Moving(velocity) {
		c.stall.LastMoving = now
		return c.cfg.Power
	}

	if now.Sub(c.stall.LastMoving) >= c.cfg.StallThreshold {
		c.state = CollectorStallReverse
		c.stall.LastStall = now
		return -c.cfg.Power
	}
	return c.cfg.Power
}

// Moving reports whether velocity is at least StallFraction of the nominal power.
func (c *Collector) Moving(velocity float64) bool {
	if c.ticksPerSecond == 0 {
		return true
	}
	return velocity/c.ticksPerSecond >= c.cfg.StallFraction*c.cfg.Power
}

// State returns the current stall machine mode.
func (c *Collector) State() CollectorState {
	return c.state
}

// On reports whether the operator has the collector enabled.
func (c *Collector) On() bool {
	return c.state != CollectorOff
}

// Tracker returns a copy of the stall timestamps.
func (c *Collector) Tracker() StallTracker {
	return c.stall
}
