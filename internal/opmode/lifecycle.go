package opmode

import (
	"sync"

	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/gamepad"
)

// Lifecycle tells the runner when the program may start and when it must stop.
// The gpio panel (gpio.Panel) is the on-robot implementation.
type Lifecycle interface {
	// Started is polled every tick until it returns true.
	Started() (bool, error)
	// Active is polled every tick after start; false stops the program.
	Active() (bool, error)
}

// AutoStart starts immediately and stays active until the context is cancelled.
type AutoStart struct{}

func (AutoStart) Started() (bool, error) { return true, nil }
func (AutoStart) Active() (bool, error)  { return true, nil }

// GamepadStart starts the program when driver 1 presses Start.
// It wraps the gamepad source so the runner's own sampling drives it.
type GamepadStart struct {
	src gamepad.Source

	mu      sync.Mutex
	started bool
}

// NewGamepadStart wraps src.
func NewGamepadStart(src gamepad.Source) *GamepadStart {
	return &GamepadStart{src: src}
}

// Read implements gamepad.Source and latches driver 1's Start button.
func (g *GamepadStart) Read() (control.Gamepad, control.Gamepad, error) {
	d1, d2, err := g.src.Read()
	if err != nil {
		return d1, d2, err
	}
	if d1.Start {
		g.mu.Lock()
		g.started = true
		g.mu.Unlock()
	}
	return d1, d2, nil
}

// Started reports whether Start has been seen.
func (g *GamepadStart) Started() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started, nil
}

// Active is always true; the program runs until the context is cancelled.
func (g *GamepadStart) Active() (bool, error) {
	return true, nil
}

// Connected reports whether the wrapped source has a live driver station.
func (g *GamepadStart) Connected() bool {
	if c, ok := g.src.(connected); ok {
		return c.Connected()
	}
	return false
}

type connected interface {
	Connected() bool
}
