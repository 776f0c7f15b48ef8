// Package config loads the robot configuration: tuning constants, preset
// positions, device wiring and transport settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/teleop/internal/control"
	"github.com/sweeney/teleop/internal/gpio"
	"github.com/sweeney/teleop/internal/hardware"
	"github.com/sweeney/teleop/internal/mqtt"
)

// Backends.
const (
	BackendFake = "fake"
	BackendSim  = "sim"
	BackendHub  = "hub"
)

// Lifecycle modes.
const (
	LifecycleAuto    = "auto"
	LifecycleGamepad = "gamepad"
	LifecyclePanel   = "panel"
)

const (
	DefaultPeriod            = 20 * time.Millisecond
	DefaultTelemetryInterval = 100 * time.Millisecond
	DefaultBroker            = "tcp://192.168.1.200:1883"
	DefaultHTTPAddr          = ":8080"
	DefaultHubPort           = "/dev/ttyACM0"
	DefaultHubBaud           = 115200
	DefaultHubReadTimeout    = 50 * time.Millisecond
)

type Config struct {
	Hardware  HardwareConfig  `yaml:"hardware"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Gamepad   GamepadConfig   `yaml:"gamepad"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
	Drive     DriveConfig     `yaml:"drive"`
	Collector CollectorConfig `yaml:"collector"`
	Lift      LiftConfig      `yaml:"lift"`
	Hook      HookConfig      `yaml:"hook"`
	Presets   PresetConfig    `yaml:"presets"`
}

type HardwareConfig struct {
	Backend  string        `yaml:"backend"`
	Period   time.Duration `yaml:"period"`
	Reversed []string      `yaml:"reversed"`
	Brake    []string      `yaml:"brake"`
	Hub      HubConfig     `yaml:"hub"`
	Sim      SimConfig     `yaml:"sim"`
}

type HubConfig struct {
	Port        string         `yaml:"port"`
	Baud        int            `yaml:"baud"`
	ReadTimeout time.Duration  `yaml:"read_timeout"`
	Motors      map[string]int `yaml:"motors"`
	Servos      map[string]int `yaml:"servos"`
}

type SimConfig struct {
	TimeConstant time.Duration `yaml:"time_constant"`
	PositionGain float64       `yaml:"position_gain"`
}

type LifecycleConfig struct {
	Mode      string `yaml:"mode"`
	PinStart  int    `yaml:"pin_start"`
	PinEnable int    `yaml:"pin_enable"`
}

type GamepadConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type MQTTConfig struct {
	Broker            string        `yaml:"broker"`
	ClientID          string        `yaml:"client_id"`
	TelemetryInterval time.Duration `yaml:"telemetry_interval"`
	BufferSize        int           `yaml:"buffer_size"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DriveConfig struct {
	Mode       control.DriveMode `yaml:"mode"`
	Multiplier float64           `yaml:"multiplier"`
	MotorType  control.MotorType `yaml:"motor_type"`
}

type CollectorConfig struct {
	Power          float64           `yaml:"power"`
	StallThreshold time.Duration     `yaml:"stall_threshold"`
	StallRelease   time.Duration     `yaml:"stall_release"`
	StallFraction  float64           `yaml:"stall_fraction"`
	MotorType      control.MotorType `yaml:"motor_type"`
}

type LiftConfig struct {
	Multiplier float64           `yaml:"multiplier"`
	HoldPower  float64           `yaml:"hold_power"`
	MotorType  control.MotorType `yaml:"motor_type"`
}

type HookConfig struct {
	UpMultiplier   float64           `yaml:"up_multiplier"`
	DownMultiplier float64           `yaml:"down_multiplier"`
	HoldPower      float64           `yaml:"hold_power"`
	ReleaseTicks   int               `yaml:"release_ticks"`
	MotorType      control.MotorType `yaml:"motor_type"`
}

type PresetConfig struct {
	Filter struct {
		Downwards     control.Pair `yaml:"downwards"`
		Center        control.Pair `yaml:"center"`
		AlignWithHook control.Pair `yaml:"align_with_hook"`
	} `yaml:"filter"`
	Storage struct {
		Open   control.Pair `yaml:"open"`
		Closed control.Pair `yaml:"closed"`
	} `yaml:"storage"`
	Claw struct {
		Open   control.Pair `yaml:"open"`
		Closed control.Pair `yaml:"closed"`
	} `yaml:"claw"`
}

// DefaultConfig returns the season configuration.
func DefaultConfig() *Config {
	c := control.DefaultConfig()
	cfg := &Config{
		Hardware: HardwareConfig{
			Backend:  BackendSim,
			Period:   DefaultPeriod,
			Reversed: []string{control.MotorCollector, control.MotorRight, control.MotorLeftLift},
			Brake:    []string{control.MotorLeft, control.MotorRight},
			Hub: HubConfig{
				Port:        DefaultHubPort,
				Baud:        DefaultHubBaud,
				ReadTimeout: DefaultHubReadTimeout,
				Motors: map[string]int{
					control.MotorLeft:      0,
					control.MotorRight:     1,
					control.MotorLeftLift:  2,
					control.MotorRightLift: 3,
					control.MotorCollector: 4,
					control.MotorHook:      5,
				},
				Servos: map[string]int{
					control.ServoFilterLeft:   0,
					control.ServoFilterRight:  1,
					control.ServoStorageLeft:  2,
					control.ServoStorageRight: 3,
					control.ServoClawLeft:     4,
					control.ServoClawRight:    5,
				},
			},
			Sim: SimConfig{TimeConstant: 50 * time.Millisecond, PositionGain: 0.01},
		},
		Lifecycle: LifecycleConfig{
			Mode:      LifecycleGamepad,
			PinStart:  gpio.PinStart,
			PinEnable: gpio.PinEnable,
		},
		Gamepad: GamepadConfig{Timeout: 500 * time.Millisecond},
		MQTT: MQTTConfig{
			Broker:            DefaultBroker,
			ClientID:          "teleop",
			TelemetryInterval: DefaultTelemetryInterval,
			BufferSize:        mqtt.DefaultBufferSize,
		},
		HTTP: HTTPConfig{Addr: DefaultHTTPAddr},
		Drive: DriveConfig{
			Mode:       c.Drive.Mode,
			Multiplier: c.Drive.Multiplier,
			MotorType:  c.Drive.MotorType,
		},
		Collector: CollectorConfig{
			Power:          c.Collector.Power,
			StallThreshold: c.Collector.StallThreshold,
			StallRelease:   c.Collector.StallRelease,
			StallFraction:  c.Collector.StallFraction,
			MotorType:      c.Collector.MotorType,
		},
		Lift: LiftConfig{
			Multiplier: c.Lift.Multiplier,
			HoldPower:  c.Lift.HoldPower,
			MotorType:  c.Lift.MotorType,
		},
		Hook: HookConfig{
			UpMultiplier:   c.Hook.UpMultiplier,
			DownMultiplier: c.Hook.DownMultiplier,
			HoldPower:      c.Hook.HoldPower,
			ReleaseTicks:   c.Hook.ReleaseTicks,
			MotorType:      c.Hook.MotorType,
		},
	}
	cfg.Presets.Filter.Downwards = c.Filter.Downwards
	cfg.Presets.Filter.Center = c.Filter.Center
	cfg.Presets.Filter.AlignWithHook = c.Filter.AlignWithHook
	cfg.Presets.Storage.Open = c.Storage.Open
	cfg.Presets.Storage.Closed = c.Storage.Closed
	cfg.Presets.Claw.Open = c.Claw.Open
	cfg.Presets.Claw.Closed = c.Claw.Closed
	return cfg
}

// Load reads path as YAML over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal returns cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Hardware.Backend {
	case BackendFake, BackendSim:
	case BackendHub:
		if c.Hardware.Hub.Port == "" {
			add("hardware.hub.port is required for the hub backend")
		}
		for _, name := range control.DriveMotors {
			if _, ok := c.Hardware.Hub.Motors[name]; !ok {
				add("hardware.hub.motors: no port for %q", name)
			}
		}
		for _, name := range control.DriveServos {
			if _, ok := c.Hardware.Hub.Servos[name]; !ok {
				add("hardware.hub.servos: no port for %q", name)
			}
		}
	default:
		add("hardware.backend: unknown backend %q", c.Hardware.Backend)
	}
	if c.Hardware.Period <= 0 {
		add("hardware.period must be positive, got %v", c.Hardware.Period)
	}
	known := map[string]bool{}
	for _, n := range control.DriveMotors {
		known[n] = true
	}
	for _, n := range c.Hardware.Reversed {
		if !known[n] {
			add("hardware.reversed: unknown motor %q", n)
		}
	}
	for _, n := range c.Hardware.Brake {
		if !known[n] {
			add("hardware.brake: unknown motor %q", n)
		}
	}

	switch c.Lifecycle.Mode {
	case LifecycleAuto, LifecycleGamepad, LifecyclePanel:
	default:
		add("lifecycle.mode: unknown mode %q", c.Lifecycle.Mode)
	}

	if c.MQTT.TelemetryInterval < 0 {
		add("mqtt.telemetry_interval must not be negative")
	}

	switch c.Drive.Mode {
	case control.DriveArcade, control.DriveTank:
	default:
		add("drive.mode: unknown mode %q", c.Drive.Mode)
	}
	for field, mt := range map[string]control.MotorType{
		"drive.motor_type":     c.Drive.MotorType,
		"collector.motor_type": c.Collector.MotorType,
		"lift.motor_type":      c.Lift.MotorType,
		"hook.motor_type":      c.Hook.MotorType,
	} {
		if mt.TicksPerSecond() == 0 {
			add("%s: unknown motor type %q", field, mt)
		}
	}
	if c.Collector.StallThreshold <= 0 || c.Collector.StallRelease <= 0 {
		add("collector stall threshold and release must be positive")
	}

	for name, p := range c.presetPairs() {
		if p.Left < 0 || p.Left > 1 || p.Right < 0 || p.Right > 1 {
			add("presets.%s: positions must be within [0, 1], got %+v", name, p)
		}
	}

	return errors.Join(errs...)
}

func (c *Config) presetPairs() map[string]control.Pair {
	return map[string]control.Pair{
		"filter.downwards":       c.Presets.Filter.Downwards,
		"filter.center":          c.Presets.Filter.Center,
		"filter.align_with_hook": c.Presets.Filter.AlignWithHook,
		"storage.open":           c.Presets.Storage.Open,
		"storage.closed":         c.Presets.Storage.Closed,
		"claw.open":              c.Presets.Claw.Open,
		"claw.closed":            c.Presets.Claw.Closed,
	}
}

// Control returns the tuning for the control package.
func (c *Config) Control() control.Config {
	return control.Config{
		Drive: control.DriveConfig{
			Mode:       c.Drive.Mode,
			Multiplier: c.Drive.Multiplier,
			MotorType:  c.Drive.MotorType,
		},
		Collector: control.CollectorConfig{
			Power:          c.Collector.Power,
			StallThreshold: c.Collector.StallThreshold,
			StallRelease:   c.Collector.StallRelease,
			StallFraction:  c.Collector.StallFraction,
			MotorType:      c.Collector.MotorType,
		},
		Lift: control.LiftConfig{
			Multiplier: c.Lift.Multiplier,
			HoldPower:  c.Lift.HoldPower,
			MotorType:  c.Lift.MotorType,
		},
		Hook: control.HookConfig{
			UpMultiplier:   c.Hook.UpMultiplier,
			DownMultiplier: c.Hook.DownMultiplier,
			HoldPower:      c.Hook.HoldPower,
			ReleaseTicks:   c.Hook.ReleaseTicks,
			MotorType:      c.Hook.MotorType,
		},
		Filter: control.FilterPresets{
			Downwards:     c.Presets.Filter.Downwards,
			Center:        c.Presets.Filter.Center,
			AlignWithHook: c.Presets.Filter.AlignWithHook,
		},
		Storage: control.StoragePresets{
			Open:   c.Presets.Storage.Open,
			Closed: c.Presets.Storage.Closed,
		},
		Claw: control.ClawPresets{
			Open:   c.Presets.Claw.Open,
			Closed: c.Presets.Claw.Closed,
		},
	}
}

// Options returns the device binding options.
func (c *Config) Options() hardware.Options {
	return hardware.Options{Reversed: c.Hardware.Reversed, Brake: c.Hardware.Brake}
}

// MotorTypes maps every drive motor to its configured type.
func (c *Config) MotorTypes() map[string]control.MotorType {
	return map[string]control.MotorType{
		control.MotorLeft:      c.Drive.MotorType,
		control.MotorRight:     c.Drive.MotorType,
		control.MotorLeftLift:  c.Lift.MotorType,
		control.MotorRightLift: c.Lift.MotorType,
		control.MotorCollector: c.Collector.MotorType,
		control.MotorHook:      c.Hook.MotorType,
	}
}
