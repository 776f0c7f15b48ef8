package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sweeney/teleop/internal/config"
	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/gamepad"
	"github.com/sweeney/teleop/internal/gpio"
	"github.com/sweeney/teleop/internal/hardware"
	"github.com/sweeney/teleop/internal/mqtt"
	"github.com/sweeney/teleop/internal/opmode"
	"github.com/sweeney/teleop/internal/status"
	"github.com/sweeney/teleop/internal/telemetry"
	"github.com/sweeney/teleop/internal/web"
)

func run(cfg *config.Config, prog opmode.Program) error {
	// Initialize hardware
	backend, closer, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	hw, err := hardware.Bind(backend, prog.Motors(), prog.Servos(), cfg.Options())
	if err != nil {
		return fmt.Errorf("bind %s devices: %w", prog.Name(), err)
	}

	// Driver station and lifecycle
	pads := gamepad.NewServer(cfg.Gamepad.Timeout)
	source, lifecycle, err := openLifecycle(cfg, pads)
	if err != nil {
		return fmt.Errorf("init lifecycle: %w", err)
	}
	if c, ok := lifecycle.(io.Closer); ok {
		defer c.Close()
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Program:     prog.Name(),
		Backend:     cfg.Hardware.Backend,
		Lifecycle:   cfg.Lifecycle.Mode,
		LoopMs:      cfg.Hardware.Period.Milliseconds(),
		TelemetryMs: cfg.MQTT.TelemetryInterval.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	})

	// Initialize MQTT
	sinks := telemetry.Multi{tracker}
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Program:    prog.Name(),
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		sinks = append(sinks, mqtt.NewThrottle(p, cfg.MQTT.TelemetryInterval))
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		srv.Handle("/gamepad", pads)
		if sim, ok := backend.(*hardware.Sim); ok {
			srv.Handle("/sim/jam", jamHandler(sim))
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	publishSystem(publisher, mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     mqtt.EventStartup,
		Program:   prog.Name(),
		Retained:  true,
	})

	log.Printf("started: program=%s backend=%s lifecycle=%s period=%v broker=%s",
		prog.Name(), cfg.Hardware.Backend, cfg.Lifecycle.Mode, cfg.Hardware.Period, cfg.MQTT.Broker)

	ticker := time.NewTicker(cfg.Hardware.Period)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	runner := &opmode.Runner{
		Hardware:   hw,
		Gamepads:   source,
		Lifecycle:  lifecycle,
		Telemetry:  sinks,
		Publisher:  publisher,
		MQTTStatus: mqttStatus,
		Tracker:    tracker,
	}
	return runLoop(runner, prog, publisher, tracker, time.Now, ticker.C, sigCh)
}

// runLoop runs prog until it stops or a signal arrives, then publishes SHUTDOWN.
func runLoop(runner *opmode.Runner, prog opmode.Program, publisher mqtt.Publisher, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	go func() {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			cancel(errors.New(signalName(s)))
		case <-ctx.Done():
		}
	}()

	runner.Now = now
	err := runner.Run(ctx, prog, tick)

	reason := opmode.ReasonCancelled
	if tracker != nil {
		if r := tracker.Snapshot().StopReason; r != "" {
			reason = r
		}
	}
	publishSystem(publisher, mqtt.SystemEvent{
		Timestamp: now(),
		Event:     mqtt.EventShutdown,
		Program:   prog.Name(),
		Reason:    reason,
		Retained:  true,
	})
	return err
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func publishSystem(publisher mqtt.Publisher, ev mqtt.SystemEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", ev.Event, err)
	} else {
		log.Printf("published %s event", ev.Event)
	}
}

// openBackend returns the configured device backend and, for the hub, the
// serial port to close afterwards.
func openBackend(cfg *config.Config) (hardware.Backend, io.Closer, error) {
	switch cfg.Hardware.Backend {
	case config.BackendFake:
		return hardware.NewFakeBackend(control.DriveMotors, control.DriveServos), nil, nil
	case config.BackendSim:
		return hardware.NewSim(hardware.SimConfig{
			Motors:       cfg.MotorTypes(),
			Servos:       control.DriveServos,
			TimeConstant: cfg.Hardware.Sim.TimeConstant,
			PositionGain: cfg.Hardware.Sim.PositionGain,
		}), nil, nil
	case config.BackendHub:
		hub, err := hardware.OpenHub(hardware.HubConfig{
			Port:        cfg.Hardware.Hub.Port,
			Baud:        cfg.Hardware.Hub.Baud,
			ReadTimeout: cfg.Hardware.Hub.ReadTimeout,
			Motors:      cfg.Hardware.Hub.Motors,
			Servos:      cfg.Hardware.Hub.Servos,
		})
		if err != nil {
			return nil, nil, err
		}
		return hub, hub, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Hardware.Backend)
}

// openLifecycle returns the gamepad source the runner samples and the
// lifecycle that starts and stops it.
func openLifecycle(cfg *config.Config, pads gamepad.Source) (gamepad.Source, opmode.Lifecycle, error) {
	switch cfg.Lifecycle.Mode {
	case config.LifecycleAuto:
		return pads, opmode.AutoStart{}, nil
	case config.LifecycleGamepad:
		g := opmode.NewGamepadStart(pads)
		return g, g, nil
	case config.LifecyclePanel:
		r, err := gpio.NewRealReader(cfg.Lifecycle.PinStart, cfg.Lifecycle.PinEnable)
		if err != nil {
			return nil, nil, err
		}
		return pads, gpio.NewPanel(r), nil
	}
	return nil, nil, fmt.Errorf("unknown lifecycle %q", cfg.Lifecycle.Mode)
}

// jamHandler stalls or frees a simulated motor: POST /sim/jam?motor=collector&on=1.
func jamHandler(sim *hardware.Sim) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		on, err := strconv.ParseBool(r.URL.Query().Get("on"))
		if err != nil {
			http.Error(w, "on must be a boolean", http.StatusBadRequest)
			return
		}
		motor := r.URL.Query().Get("motor")
		if err := sim.Jam(motor, on); err != nil {
			if errors.Is(err, hardware.ErrDeviceNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Printf("sim: %s jammed=%v", motor, on)
		w.WriteHeader(http.StatusNoContent)
	})
}
