package opmode

import (
	"time"

	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/telemetry"
)

// Tuner is the servo calibration program. Driver 1 selects a servo with the
// dpad and nudges it with the left stick; Back+B exits.
type Tuner struct {
	cfg   control.Config
	tuner *control.Tuner
	prev  time.Time
}

// NewTuner creates the tuner program. cfg supplies the preset labels.
func NewTuner(cfg control.Config) *Tuner {
	return &Tuner{cfg: cfg}
}

func (t *Tuner) Name() string     { return "tuner" }
func (t *Tuner) Motors() []string { return nil }
func (t *Tuner) Servos() []string { return control.TunerServoNames() }

// Start seeds every servo from its last commanded position.
func (t *Tuner) Start(at time.Time, servos map[string]float64) error {
	t.tuner = control.NewTuner(servos, control.Presets(t.cfg))
	t.prev = at
	return nil
}

func (t *Tuner) Step(in control.Input, out *control.Output) bool {
	elapsed := in.Time.Sub(t.prev)
	if elapsed < 0 {
		elapsed = 0
	}
	t.prev = in.Time
	return t.tuner.Step(in.Driver1, elapsed, out)
}

func (t *Tuner) Report(b *telemetry.Builder) {
	if t.tuner == nil {
		return
	}
	pos := t.tuner.Position()
	b.Section("TUNER")
	b.Add("Selected servo", t.tuner.Selected())
	b.Add("Position", pos)
	b.Add("Preset", t.tuner.Label(pos))
}
