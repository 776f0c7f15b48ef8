// Package opmode runs teleop programs: it waits for start, then steps the
// program once per tick in a fixed stage order until it is stopped.
package opmode

import (
	"time"

	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/telemetry"
)

// Program is one operator-selectable teleop program.
type Program interface {
	// Name identifies the program in telemetry and lifecycle events.
	Name() string
	// Motors and Servos list every device the program needs bound.
	Motors() []string
	Servos() []string
	// Start resets all program state. servos holds the positions the servos
	// were last commanded to before the program started.
	Start(at time.Time, servos map[string]float64) error
	// Step runs the driver stages for one tick and appends the commands to out.
	// Returning true ends the program.
	Step(in control.Input, out *control.Output) (done bool)
	// Report appends the program's telemetry. It must not change program state.
	Report(b *telemetry.Builder)
}
