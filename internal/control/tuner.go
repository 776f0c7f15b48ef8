package control

import (
	"math"
	"sort"
	"strings"
	"time"
)

// TunerServos lists the servos the tuner can select, with their selection buttons.
var TunerServos = []Binding[string]{
	{Button: ButtonDpadLeft, State: ServoFilterLeft},
	{Button: ButtonDpadRight, State: ServoFilterRight},
	{Button: ButtonDpadUp, State: ServoStorageLeft},
	{Button: ButtonDpadDown, State: ServoStorageRight},
}

// TunerServoNames returns the servo names the tuner binds.
func TunerServoNames() []string {
	names := make([]string, len(TunerServos))
	for i, b := range TunerServos {
		names[i] = b.State
	}
	return names
}

// NamedPosition is a preset constant the tuner can recognise.
type NamedPosition struct {
	Name     string
	Position float64
}

// Presets flattens the servo preset constants of cfg into labelled positions,
// sorted by name.
func Presets(cfg Config) []NamedPosition {
	pairs := map[string]Pair{
		"filter.downwards":       cfg.Filter.Downwards,
		"filter.center":          cfg.Filter.Center,
		"filter.align_with_hook": cfg.Filter.AlignWithHook,
		"storage.open":           cfg.Storage.Open,
		"storage.closed":         cfg.Storage.Closed,
		"claw.open":              cfg.Claw.Open,
		"claw.closed":            cfg.Claw.Closed,
	}
	var out []NamedPosition
	for name, p := range pairs {
		out = append(out,
			NamedPosition{Name: name + ".left", Position: p.Left},
			NamedPosition{Name: name + ".right", Position: p.Right},
		)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tuner nudges one selected servo from the left stick.
type Tuner struct {
	selected  string
	positions map[string]float64
	presets   []NamedPosition
}

// NewTuner creates a tuner selecting the first tuner servo.
// initial holds the positions read from the servos at start.
func NewTuner(initial map[string]float64, presets []NamedPosition) *Tuner {
	positions := make(map[string]float64, len(initial))
	for k, v := range initial {
		positions[k] = v
	}
	return &Tuner{
		selected:  TunerServos[0].State,
		positions: positions,
		presets:   presets,
	}
}

// Step handles one tick of driver-1 input. elapsed is the time since the
// previous tick. It returns true when the exit chord (Back+B) is held.
func (t *Tuner) Step(g Gamepad, elapsed time.Duration, out *Output) (exit bool) {
	if g.Back && g.B {
		return true
	}

	t.selected = Resolve(t.selected, g, TunerServos)

	cur := t.positions[t.selected]
	next := ClampPosition(cur - g.LeftStickY*elapsed.Seconds())
	if next != cur {
		t.positions[t.selected] = next
		out.servo(t.selected, next)
	}
	return false
}

// Selected returns the selected servo name.
func (t *Tuner) Selected() string {
	return t.selected
}

// Position returns the commanded position of the selected servo.
func (t *Tuner) Position() float64 {
	return t.positions[t.selected]
}

// Label names the presets matching pos at 3-decimal rounding, or "-".
func (t *Tuner) Label(pos float64) string {
	var names []string
	for _, p := range t.presets {
		if round3(p.Position) == round3(pos) {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
