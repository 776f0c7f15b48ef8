package opmode

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/gamepad"
	"github.com/sweeney/teleop/internal/hardware"
	"github.com/sweeney/teleop/internal/mqtt"
	"github.com/sweeney/teleop/internal/status"
	"github.com/sweeney/teleop/internal/telemetry"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const period = 20 * time.Millisecond

// scriptProgram commands a fixed power on the left motor and records its inputs.
type scriptProgram struct {
	cmd       control.MotorCommand
	exitAfter int
	startErr  error

	startedAt time.Time
	initial   map[string]float64
	inputs    []control.Input
}

func (p *scriptProgram) Name() string     { return "script" }
func (p *scriptProgram) Motors() []string { return []string{control.MotorLeft} }
func (p *scriptProgram) Servos() []string { return []string{control.ServoClawLeft} }

func (p *scriptProgram) Start(at time.Time, servos map[string]float64) error {
	p.startedAt = at
	p.initial = servos
	return p.startErr
}

func (p *scriptProgram) Step(in control.Input, out *control.Output) bool {
	p.inputs = append(p.inputs, in)
	out.Motors = append(out.Motors, control.MotorWrite{Name: control.MotorLeft, Command: p.cmd})
	return p.exitAfter > 0 && len(p.inputs) >= p.exitAfter
}

func (p *scriptProgram) Report(b *telemetry.Builder) {
	b.Section("SCRIPT")
	b.Add("Steps", len(p.inputs))
}

// scriptedLifecycle starts on poll startAt and then reports active values in turn.
type scriptedLifecycle struct {
	startAt int
	active  []bool
	polls   int
}

func (l *scriptedLifecycle) Started() (bool, error) {
	l.polls++
	return l.polls >= l.startAt, nil
}

func (l *scriptedLifecycle) Active() (bool, error) {
	if len(l.active) == 0 {
		return true, nil
	}
	a := l.active[0]
	l.active = l.active[1:]
	return a, nil
}

type sinkFunc func(telemetry.Frame) error

func (f sinkFunc) Update(frame telemetry.Frame) error { return f(frame) }

type harness struct {
	t       *testing.T
	backend *hardware.FakeBackend
	pads    *gamepad.FakeSource
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	runner  *Runner
	tick    chan time.Time
	ticks   int

	mu     sync.Mutex
	frames []telemetry.Frame
	powers []float64
}

func newHarness(t *testing.T, lc Lifecycle, frames ...gamepad.Frame) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		backend: hardware.NewFakeBackend([]string{control.MotorLeft}, []string{control.ServoClawLeft}),
		pads:    gamepad.NewFakeSource(frames...),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(t0, status.Config{Program: "script"}),
		tick:    make(chan time.Time),
	}
	hw, err := hardware.Bind(h.backend, []string{control.MotorLeft}, []string{control.ServoClawLeft}, hardware.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sink := sinkFunc(func(f telemetry.Frame) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.frames = append(h.frames, f)
		// Telemetry runs after apply, so this is the tick's commanded power.
		h.powers = append(h.powers, h.backend.FakeMotor(control.MotorLeft).Command().Power)
		return nil
	})
	h.runner = &Runner{
		Hardware:   hw,
		Gamepads:   h.pads,
		Lifecycle:  lc,
		Telemetry:  telemetry.Multi{h.tracker, sink},
		Publisher:  h.pub,
		MQTTStatus: h.pub,
		Tracker:    h.tracker,
		Now:        func() time.Time { return t0 },
	}
	return h
}

func (h *harness) start(ctx context.Context, prog Program) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx, prog, h.tick) }()
	return done
}

// send delivers n ticks, period apart, starting one period after t0.
func (h *harness) send(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.ticks++
		select {
		case h.tick <- t0.Add(time.Duration(h.ticks) * period):
		case <-time.After(2 * time.Second):
			h.t.Fatalf("tick %d not consumed", h.ticks)
		}
	}
}

func (h *harness) wait(done <-chan error) error {
	h.t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		h.t.Fatal("runner did not return")
		return nil
	}
}

func (h *harness) lastFrame() telemetry.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.frames) == 0 {
		h.t.Fatal("no telemetry frames")
	}
	return h.frames[len(h.frames)-1]
}

func TestRunnerStepsInStageOrder(t *testing.T) {
	h := newHarness(t, AutoStart{}, gamepad.Frame{Gamepad1: control.Gamepad{LeftStickY: -1}})
	h.backend.FakeMotor(control.MotorLeft).SetEncoder(42, 10)
	prog := &scriptProgram{cmd: control.Direct(0.5), exitAfter: 3}

	done := h.start(context.Background(), prog)
	h.send(4) // start tick + 3 steps
	if err := h.wait(done); err != nil {
		t.Fatal(err)
	}

	if !prog.startedAt.Equal(t0.Add(period)) {
		t.Errorf("start time: got %v", prog.startedAt)
	}
	if len(prog.inputs) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(prog.inputs))
	}
	in := prog.inputs[0]
	if !in.Time.Equal(t0.Add(2 * period)) {
		t.Errorf("first step time: got %v", in.Time)
	}
	if in.Driver1.LeftStickY != -1 {
		t.Errorf("driver1 not sampled: %+v", in.Driver1)
	}
	if r := in.Motors[control.MotorLeft]; r.Position != 42 || r.Velocity != 10 {
		t.Errorf("motor reading: got %+v", r)
	}

	for i, p := range h.powers {
		if p != 0.5 {
			t.Errorf("frame %d: telemetry saw power %v before apply", i, p)
		}
	}

	f := h.lastFrame()
	if got, _ := f.Get("SCRIPT", "Steps"); got != "3" {
		t.Errorf("SCRIPT Steps: got %q", got)
	}
	if got, _ := f.Get("HEALTH", "Runtime since START"); got != "0.06s" {
		t.Errorf("Runtime since START: got %q", got)
	}
	if got, _ := f.Get("HEALTH", "Runtime since INIT"); got != "0.08s" {
		t.Errorf("Runtime since INIT: got %q", got)
	}
	if !reflect.DeepEqual(f.Sections(), []string{"SCRIPT", "HEALTH"}) {
		t.Errorf("sections: got %v", f.Sections())
	}

	if cmd := h.backend.FakeMotor(control.MotorLeft).Command(); cmd.Power != 0 {
		t.Errorf("expected zero power after stop, got %+v", cmd)
	}
	if got := h.pub.EventNames(); !reflect.DeepEqual(got, []string{mqtt.EventStart, mqtt.EventStop}) {
		t.Errorf("events: got %v", got)
	}
	if r := h.pub.SystemEvents[1].Reason; r != ReasonExit {
		t.Errorf("stop reason: got %q", r)
	}

	snap := h.tracker.Snapshot()
	if snap.Phase != status.PhaseStopped || snap.StopReason != ReasonExit {
		t.Errorf("tracker: phase=%s reason=%s", snap.Phase, snap.StopReason)
	}
	if snap.Ticks != 3 {
		t.Errorf("tracker ticks: got %d", snap.Ticks)
	}
}

func TestRunnerWaitsForStart(t *testing.T) {
	h := newHarness(t, &scriptedLifecycle{startAt: 100})
	prog := &scriptProgram{cmd: control.Direct(1)}

	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx, prog)
	h.send(3)
	cancel()
	if err := h.wait(done); err != nil {
		t.Fatal(err)
	}

	if len(prog.inputs) != 0 || !prog.startedAt.IsZero() {
		t.Error("program ran before start")
	}
	if h.pads.Reads() != 3 {
		t.Errorf("expected gamepads sampled while waiting, got %d reads", h.pads.Reads())
	}
	f := h.lastFrame()
	if got, _ := f.Get("HEALTH", "Status"); got != "Initialized" {
		t.Errorf("HEALTH Status: got %q", got)
	}
	if got := h.pub.EventNames(); !reflect.DeepEqual(got, []string{mqtt.EventStop}) {
		t.Errorf("events: got %v", got)
	}
	if r := h.pub.SystemEvents[0].Reason; r != ReasonCancelled {
		t.Errorf("stop reason: got %q", r)
	}
	snap := h.tracker.Snapshot()
	if !snap.StartTime.IsZero() {
		t.Error("tracker should never have started")
	}
}

func TestRunnerStopsWhenDisabled(t *testing.T) {
	lc := &scriptedLifecycle{startAt: 1, active: []bool{true, true, false}}
	h := newHarness(t, lc)
	prog := &scriptProgram{cmd: control.Direct(0.7)}

	done := h.start(context.Background(), prog)
	h.send(4)
	if err := h.wait(done); err != nil {
		t.Fatal(err)
	}

	if len(prog.inputs) != 2 {
		t.Errorf("expected 2 steps before disable, got %d", len(prog.inputs))
	}
	if cmd := h.backend.FakeMotor(control.MotorLeft).Command(); cmd.Power != 0 {
		t.Errorf("expected zero stop, got %+v", cmd)
	}
	snap := h.tracker.Snapshot()
	if snap.StopReason != ReasonDisabled {
		t.Errorf("stop reason: got %q", snap.StopReason)
	}
	if !snap.StopTime.Equal(t0.Add(4 * period)) {
		t.Errorf("stop time: got %v", snap.StopTime)
	}
}

func TestRunnerCancelCauseIsReason(t *testing.T) {
	h := newHarness(t, AutoStart{})
	prog := &scriptProgram{cmd: control.Direct(0.3)}

	ctx, cancel := context.WithCancelCause(context.Background())
	done := h.start(ctx, prog)
	h.send(2)
	cancel(errors.New("terminated"))
	if err := h.wait(done); err != nil {
		t.Fatal(err)
	}

	if r := h.tracker.Snapshot().StopReason; r != "terminated" {
		t.Errorf("stop reason: got %q", r)
	}
	if cmd := h.backend.FakeMotor(control.MotorLeft).Command(); cmd.Power != 0 {
		t.Errorf("expected zero stop, got %+v", cmd)
	}
}

func TestReason(t *testing.T) {
	plain, cancel := context.WithCancel(context.Background())
	cancel()
	caused, cancelCause := context.WithCancelCause(context.Background())
	cancelCause(errors.New("interrupt"))
	explicit, cancelCanceled := context.WithCancelCause(context.Background())
	cancelCanceled(context.Canceled)

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"plain cancel", plain, ReasonCancelled},
		{"cause", caused, "interrupt"},
		{"canceled cause", explicit, ReasonCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reason(tt.ctx); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunnerTickErrorsDoNotStopLoop(t *testing.T) {
	h := newHarness(t, AutoStart{})
	boom := errors.New("bus fault")
	h.backend.FakeMotor(control.MotorLeft).SetError(boom)
	h.pads.SetError(errors.New("usb unplugged"))
	prog := &scriptProgram{cmd: control.Direct(0.5), exitAfter: 3}

	done := h.start(context.Background(), prog)
	h.send(4)
	if err := h.wait(done); err != nil {
		t.Fatal(err)
	}

	if len(prog.inputs) != 3 {
		t.Errorf("expected loop to keep stepping, got %d steps", len(prog.inputs))
	}
	if d1 := prog.inputs[0].Driver1; d1 != (control.Gamepad{}) {
		t.Errorf("expected neutral gamepad on read error, got %+v", d1)
	}
	snap := h.tracker.Snapshot()
	if snap.Errors == 0 || snap.LastError == "" {
		t.Errorf("expected recorded errors, got %d %q", snap.Errors, snap.LastError)
	}
}

func TestRunnerStartFailure(t *testing.T) {
	h := newHarness(t, AutoStart{})
	prog := &scriptProgram{startErr: errors.New("bad preset")}

	done := h.start(context.Background(), prog)
	h.send(1)
	err := h.wait(done)
	if err == nil {
		t.Fatal("expected start error")
	}
	if r := h.tracker.Snapshot().StopReason; r != ReasonFailed {
		t.Errorf("stop reason: got %q", r)
	}
}

func TestRunnerSeedsServoPositions(t *testing.T) {
	h := newHarness(t, AutoStart{})
	if err := h.backend.FakeServo(control.ServoClawLeft).SetPosition(0.35); err != nil {
		t.Fatal(err)
	}
	prog := &scriptProgram{exitAfter: 1}

	done := h.start(context.Background(), prog)
	h.send(2)
	if err := h.wait(done); err != nil {
		t.Fatal(err)
	}
	if got := prog.initial[control.ServoClawLeft]; got != 0.35 {
		t.Errorf("initial servo position: got %v", got)
	}
}

func TestRunnerMissingServoFails(t *testing.T) {
	h := newHarness(t, AutoStart{})
	hw, err := hardware.Bind(h.backend, []string{control.MotorLeft}, nil, hardware.Options{})
	if err != nil {
		t.Fatal(err)
	}
	h.runner.Hardware = hw

	err = h.runner.Run(context.Background(), &scriptProgram{}, h.tick)
	if !errors.Is(err, hardware.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestGamepadStartLatches(t *testing.T) {
	src := gamepad.NewFakeSource(
		gamepad.Frame{},
		gamepad.Frame{Gamepad1: control.Gamepad{Start: true}},
		gamepad.Frame{},
	)
	g := NewGamepadStart(src)

	for i, want := range []bool{false, true, true} {
		if _, _, err := g.Read(); err != nil {
			t.Fatal(err)
		}
		if got, _ := g.Started(); got != want {
			t.Errorf("read %d: started=%v, want %v", i, got, want)
		}
	}
	if active, _ := g.Active(); !active {
		t.Error("expected active")
	}
	if g.Connected() {
		t.Error("fake source has no driver station")
	}
}

func TestGamepadStartIgnoresDriver2(t *testing.T) {
	g := NewGamepadStart(gamepad.NewFakeSource(gamepad.Frame{Gamepad2: control.Gamepad{Start: true}}))
	_, _, _ = g.Read()
	if started, _ := g.Started(); started {
		t.Error("driver 2 Start should not start the program")
	}
}

func TestRunnerWithGamepadStart(t *testing.T) {
	src := gamepad.NewFakeSource(
		gamepad.Frame{},
		gamepad.Frame{Gamepad1: control.Gamepad{Start: true}},
		gamepad.Frame{Gamepad1: control.Gamepad{LeftStickY: -0.5}},
	)
	lc := NewGamepadStart(src)
	h := newHarness(t, lc)
	h.runner.Gamepads = lc
	prog := &scriptProgram{exitAfter: 1}

	done := h.start(context.Background(), prog)
	h.send(3)
	if err := h.wait(done); err != nil {
		t.Fatal(err)
	}
	if !prog.startedAt.Equal(t0.Add(2 * period)) {
		t.Errorf("expected start on second tick, got %v", prog.startedAt)
	}
	if got := prog.inputs[0].Driver1.LeftStickY; got != -0.5 {
		t.Errorf("expected third frame in first step, got %v", got)
	}
}
