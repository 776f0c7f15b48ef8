// Command teleop runs the robot's driver-controlled programs and their tooling.
package main

import (
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sweeney/teleop/internal/config"
	"github.com/sweeney/teleop/internal/monitor"
	"github.com/sweeney/teleop/internal/mqtt"
	"github.com/sweeney/teleop/internal/opmode"
)

// flags holds the command-line overrides of the config file.
type flags struct {
	configFile string
	backend    string
	broker     string
	httpAddr   string
	lifecycle  string
	period     time.Duration
	plot       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "teleop",
		Short:         "driver-controlled robot programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configFile, "config", "", "config file path (yaml)")
	root.PersistentFlags().StringVar(&f.backend, "backend", "", "hardware backend: fake, sim or hub")
	root.PersistentFlags().StringVar(&f.broker, "broker", "", `MQTT broker address ("off" disables)`)
	root.PersistentFlags().StringVar(&f.httpAddr, "http", "", `HTTP status address ("off" disables)`)
	root.PersistentFlags().StringVar(&f.lifecycle, "lifecycle", "", "start/stop source: auto, gamepad or panel")
	root.PersistentFlags().DurationVar(&f.period, "period", 0, "control loop period")

	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "run the season teleop program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cfg, opmode.NewDrive(cfg.Control()))
		},
	}

	tunerCmd := &cobra.Command{
		Use:   "tuner",
		Short: "calibrate servo positions from driver 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cfg, opmode.NewTuner(cfg.Control()))
		},
	}

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "show live telemetry from the broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if cfg.MQTT.Broker == "" {
				return fmt.Errorf("monitor needs an MQTT broker")
			}
			sub, err := mqtt.NewSubscriber(cfg.MQTT.Broker, cfg.MQTT.ClientID+"-monitor")
			if err != nil {
				return err
			}
			defer sub.Close()

			_, err = tea.NewProgram(monitor.New(sub.Frames(), f.plot)).Run()
			return err
		},
	}
	monitorCmd.Flags().StringVar(&f.plot, "plot", "", `telemetry key to plot, as "SECTION/Key"`)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	root.AddCommand(driveCmd, tunerCmd, monitorCmd, configCmd)
	return root
}

// loadConfig reads the config file (or the defaults), applies the flags that
// were set, and validates the result.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	set := cmd.Flags().Changed
	if set("backend") {
		cfg.Hardware.Backend = f.backend
	}
	if set("broker") {
		cfg.MQTT.Broker = disabled(f.broker)
	}
	if set("http") {
		cfg.HTTP.Addr = disabled(f.httpAddr)
	}
	if set("lifecycle") {
		cfg.Lifecycle.Mode = f.lifecycle
	}
	if set("period") {
		cfg.Hardware.Period = f.period
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func disabled(v string) string {
	if v == "off" {
		return ""
	}
	return v
}
