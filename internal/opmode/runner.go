package opmode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/gamepad"
	"github.com/sweeney/teleop/internal/hardware"
	"github.com/sweeney/teleop/internal/mqtt"
	"github.com/sweeney/teleop/internal/status"
	"github.com/sweeney/teleop/internal/telemetry"
)

// Stop reasons reported in the STOP event.
const (
	ReasonDisabled  = "DISABLED"
	ReasonExit      = "EXIT"
	ReasonCancelled = "CANCELLED"
	ReasonFailed    = "START_FAILED"
)

// Runner drives one program at a time. Every tick runs, in order:
// input sampling, the program's driver stages, hardware apply, telemetry.
// All program state is touched from the Run goroutine only.
type Runner struct {
	Hardware  *hardware.Map
	Gamepads  gamepad.Source
	Lifecycle Lifecycle

	// Optional collaborators; nil disables them.
	Telemetry  telemetry.Sink
	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Tracker    *status.Tracker

	Now func() time.Time
}

// Run waits for start, then steps prog on every tick until the lifecycle
// deactivates, the program exits, or ctx is cancelled. Each tick carries its
// own timestamp. Motors are always commanded to zero power on the way out.
// Per-tick errors are logged and the loop continues; only startup failures
// are returned.
func (r *Runner) Run(ctx context.Context, prog Program, tick <-chan time.Time) error {
	now := r.Now
	if now == nil {
		now = time.Now
	}

	initTime := now()
	servos, err := r.Hardware.ServoPositions(prog.Servos())
	if err != nil {
		return fmt.Errorf("read initial servo positions: %w", err)
	}
	log.Printf("%s: initialized, waiting for start", prog.Name())

	startTime, ok := r.waitForStart(ctx, prog, initTime, tick)
	if !ok {
		r.finish(prog, now(), reason(ctx))
		return nil
	}

	if err := prog.Start(startTime, servos); err != nil {
		r.finish(prog, startTime, ReasonFailed)
		return fmt.Errorf("start %s: %w", prog.Name(), err)
	}
	log.Printf("%s: started", prog.Name())
	if r.Tracker != nil {
		r.Tracker.Start(startTime)
	}
	r.publish(mqtt.SystemEvent{Timestamp: startTime, Event: mqtt.EventStart, Program: prog.Name()})

	end, why := r.loop(ctx, prog, initTime, startTime, tick)
	if end.IsZero() {
		end = now()
	}
	r.finish(prog, end, why)
	return nil
}

// waitForStart returns the time of the tick on which the lifecycle started.
func (r *Runner) waitForStart(ctx context.Context, prog Program, initTime time.Time, tick <-chan time.Time) (time.Time, bool) {
	for {
		select {
		case <-ctx.Done():
			return time.Time{}, false
		case t := <-tick:
			// Keep sampling so edge-latching lifecycles see the driver station.
			if _, _, err := r.Gamepads.Read(); err != nil {
				r.fail("gamepad read", err)
			}
			started, err := r.Lifecycle.Started()
			if err != nil {
				r.fail("lifecycle", err)
				continue
			}
			if started {
				return t, true
			}

			var b telemetry.Builder
			b.Section("HEALTH")
			b.Add("Status", "Initialized")
			b.Add("Runtime since INIT", t.Sub(initTime))
			r.report(b.Frame(prog.Name(), t))
		}
	}
}

// loop returns the stop time (zero when ctx ended) and the reason.
func (r *Runner) loop(ctx context.Context, prog Program, initTime, startTime time.Time, tick <-chan time.Time) (time.Time, string) {
	for {
		select {
		case <-ctx.Done():
			return time.Time{}, reason(ctx)
		case t := <-tick:
			active, err := r.Lifecycle.Active()
			if err != nil {
				r.fail("lifecycle", err)
				continue
			}
			if !active {
				return t, ReasonDisabled
			}
			if r.step(prog, t, initTime, startTime) {
				return t, ReasonExit
			}
		}
	}
}

// step runs one tick and reports whether the program asked to exit.
func (r *Runner) step(prog Program, t, initTime, startTime time.Time) bool {
	// Input
	d1, d2, err := r.Gamepads.Read()
	if err != nil {
		r.fail("gamepad read", err)
		d1, d2 = control.Gamepad{}, control.Gamepad{}
	}
	r.Hardware.Advance(t)
	motors, err := r.Hardware.Read()
	if err != nil {
		r.fail("sensor read", err)
	}

	// Driver stages
	var out control.Output
	done := prog.Step(control.Input{Driver1: d1, Driver2: d2, Motors: motors, Time: t}, &out)

	// Apply
	if err := r.Hardware.Apply(out); err != nil {
		r.fail("apply", err)
	}

	// Telemetry
	var b telemetry.Builder
	prog.Report(&b)
	b.Section("HEALTH")
	b.Add("Runtime since INIT", t.Sub(initTime))
	b.Add("Runtime since START", t.Sub(startTime))
	r.report(b.Frame(prog.Name(), t))

	return done
}

func (r *Runner) report(frame telemetry.Frame) {
	if r.Tracker != nil {
		if r.MQTTStatus != nil {
			r.Tracker.SetMQTTConnected(r.MQTTStatus.IsConnected())
		}
		if c, ok := r.Gamepads.(connected); ok {
			r.Tracker.SetGamepadConnected(c.Connected())
		}
	}
	if r.Telemetry == nil {
		return
	}
	if err := r.Telemetry.Update(frame); err != nil {
		r.fail("telemetry", err)
	}
}

func (r *Runner) finish(prog Program, t time.Time, why string) {
	if err := r.Hardware.Stop(); err != nil {
		log.Printf("%s: zero stop failed: %v", prog.Name(), err)
	}
	log.Printf("%s: stopped reason=%s", prog.Name(), why)
	if r.Tracker != nil {
		r.Tracker.Stop(t, why)
	}
	r.publish(mqtt.SystemEvent{Timestamp: t, Event: mqtt.EventStop, Program: prog.Name(), Reason: why})
}

func (r *Runner) publish(ev mqtt.SystemEvent) {
	if r.Publisher == nil {
		return
	}
	if err := r.Publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", ev.Event, err)
	}
}

func (r *Runner) fail(stage string, err error) {
	log.Printf("%s error: %v", stage, err)
	if r.Tracker != nil {
		r.Tracker.RecordError(fmt.Errorf("%s: %w", stage, err))
	}
}

// reason names why ctx ended: the cancel cause if one was given.
func reason(ctx context.Context) string {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ReasonCancelled
	}
	return cause.Error()
}
