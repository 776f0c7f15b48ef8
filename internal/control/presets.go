package control

// FilterState is the operator-selected filter preset.
type FilterState string

const (
	FilterNone      FilterState = "NONE"
	FilterDownwards FilterState = "DOWNWARDS"
	FilterCenter    FilterState = "CENTER"
)

// StorageState is the operator-selected storage door preset.
type StorageState string

const (
	StorageNone   StorageState = "NONE"
	StorageOpen   StorageState = "OPEN"
	StorageClosed StorageState = "CLOSED"
)

// ClawState is the operator-selected claw preset.
type ClawState string

const (
	ClawNone   ClawState = "NONE"
	ClawOpen   ClawState = "OPEN"
	ClawClosed ClawState = "CLOSED"
)

// Binding maps a held button to a preset state.
type Binding[S comparable] struct {
	Button Button
	State  S
}

// Resolve returns the state selected by the held buttons, or current if none
// is held. Bindings are checked in order and the last held one wins.
func Resolve[S comparable](current S, g Gamepad, bindings []Binding[S]) S {
	for _, b := range bindings {
		if g.Pressed(b.Button) {
			current = b.State
		}
	}
	return current
}

// Default bindings, ordered so the season priorities hold when several
// buttons are pressed.
var (
	FilterBindings = []Binding[FilterState]{
		{Button: ButtonX, State: FilterCenter},
		{Button: ButtonA, State: FilterDownwards},
	}
	StorageBindings = []Binding[StorageState]{
		{Button: ButtonDpadUp, State: StorageOpen},
		{Button: ButtonDpadDown, State: StorageClosed},
	}
	ClawBindings = []Binding[ClawState]{
		{Button: ButtonRightBumper, State: ClawOpen},
		{Button: ButtonLeftBumper, State: ClawClosed},
	}
)

// PresetApplier writes a servo pair only when its resolved key changes.
type PresetApplier[K comparable] struct {
	LeftName  string
	RightName string
	// Positions returns the pair for a key; false means the key writes nothing.
	Positions func(K) (Pair, bool)

	last    K
	applied bool
	writes  int
}

// Apply appends the pair for k to out if k differs from the last applied key.
func (p *PresetApplier[K]) Apply(k K, out *Output) {
	if p.applied && p.last == k {
		return
	}
	p.last = k
	p.applied = true

	pair, ok := p.Positions(k)
	if !ok {
		return
	}
	out.servo(p.LeftName, pair.Left)
	out.servo(p.RightName, pair.Right)
	p.writes++
}

// Writes returns how many times the pair has been written.
func (p *PresetApplier[K]) Writes() int {
	return p.writes
}

// Filter is the filter preset plus the hook alignment override.
// The override is held apart from State so "no override" never aliases a preset.
type Filter struct {
	State   FilterState
	aligned bool
}

// Align activates the hook alignment override. It returns false if the
// override was already active; nested saves are dropped.
func (f *Filter) Align() bool {
	if f.aligned {
		return false
	}
	f.aligned = true
	return true
}

// Restore releases the override, making State effective again.
func (f *Filter) Restore() {
	f.aligned = false
}

// Aligned reports whether the hook alignment override is active.
func (f Filter) Aligned() bool {
	return f.aligned
}

// FilterKey identifies what the filter servos should show.
type FilterKey struct {
	State   FilterState
	Aligned bool
}

// Key returns the effective filter key.
func (f Filter) Key() FilterKey {
	if f.aligned {
		return FilterKey{Aligned: true}
	}
	return FilterKey{State: f.State}
}

func filterPositions(p FilterPresets) func(FilterKey) (Pair, bool) {
	return func(k FilterKey) (Pair, bool) {
		if k.Aligned {
			return p.AlignWithHook, true
		}
		switch k.State {
		case FilterDownwards:
			return p.Downwards, true
		case FilterCenter:
			return p.Center, true
		}
		return Pair{}, false
	}
}

func storagePositions(p StoragePresets) func(StorageState) (Pair, bool) {
	return func(s StorageState) (Pair, bool) {
		switch s {
		case StorageOpen:
			return p.Open, true
		case StorageClosed:
			return p.Closed, true
		}
		return Pair{}, false
	}
}

func clawPositions(p ClawPresets) func(ClawState) (Pair, bool) {
	return func(s ClawState) (Pair, bool) {
		switch s {
		case ClawOpen:
			return p.Open, true
		case ClawClosed:
			return p.Closed, true
		}
		return Pair{}, false
	}
}
