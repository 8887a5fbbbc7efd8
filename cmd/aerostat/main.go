// Package main is the entry point for the Aerostat weather station.
// It loads layered configuration, assembles the sources, and runs the
// polling and reporting loops in the foreground or under systemd.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/aerostat/internal/autostart"
	"github.com/Guliveer/aerostat/internal/config"
	"github.com/Guliveer/aerostat/internal/platform"
	"github.com/Guliveer/aerostat/internal/station"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.CLIOverrides
	)

	load := func(cmd *cobra.Command) (*config.Config, error) {
		var cfg *config.Config
		var err error
		if cmd.Flags().Changed("config") {
			cfg, err = config.LoadLayered(overrides, embeddedConfig, configPath)
		} else {
			cfg, err = config.LoadLayered(overrides, embeddedConfig)
		}
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	rootCmd := &cobra.Command{
		Use:           "aerostat",
		Short:         "Weather station sensor poller and reporter",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default: first of "+config.UserPath()+", "+config.SystemPath()+")")
	flags.StringVar(&overrides.SinkURL, "sink-url", "", "InfluxDB base URL")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&overrides.SensorMode, "sensor-mode", "", "sensor mode: i2c or sim")
	flags.StringVar(&overrides.StatusAddr, "status-addr", "", "status page listen address")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the sensors and report averages until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := notifyContext()
			defer stop()
			return run(ctx, cfg)
		},
	}

	var window time.Duration
	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Poll for one window, report once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := notifyContext()
			defer stop()
			return runOnce(ctx, cfg, window)
		},
	}
	onceCmd.Flags().DurationVar(&window, "window", 10*time.Second, "polling window before the report")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Initialize every source and print which ones are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return probe(cmd.Context(), cmd, cfg)
		},
	}

	var writePath string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if writePath != "" {
				if err := config.WriteConfig(cfg, writePath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Written config → %s\n", writePath)
				return nil
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	configCmd.Flags().StringVar(&writePath, "write", "", "write the effective configuration to this path")

	var mode string
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install and start the systemd service",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := autostart.ParseMode(mode)
			if err != nil {
				return err
			}
			if err := autostart.CheckElevation(m); err != nil {
				return err
			}
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return install(cmd, m, cfg, configPath)
		},
	}
	installCmd.Flags().StringVar(&mode, "mode", "system", "install mode: system or user")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the systemd service",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := autostart.ParseMode(mode)
			if err != nil {
				return err
			}
			mgr := autostart.NewWithMode(m)
			if err := mgr.Uninstall(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed service %s (%s)\n", mgr.ServiceName(), m)
			return nil
		},
	}
	uninstallCmd.Flags().StringVar(&mode, "mode", "system", "install mode: system or user")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aerostat %s\n", version)
		},
	}

	rootCmd.RunE = runCmd.RunE
	rootCmd.AddCommand(runCmd, onceCmd, probeCmd, configCmd, installCmd, uninstallCmd, versionCmd)
	return rootCmd
}

func probe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	plat := platform.New()
	st, err := station.Build(cfg, plat, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := st.Registry()
	ready := reg.InitializeAll(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-24s %s\n", "SOURCE", "STATE")
	for _, s := range reg.Snapshot() {
		fmt.Fprintf(out, "%-24s %s\n", s.Name, s.State)
	}
	fmt.Fprintf(out, "\n%d of %d sources ready (platform %s, mode %s)\n",
		ready, len(reg.Sources()), plat.Name(), cfg.Sensors.Mode)
	return nil
}

func install(cmd *cobra.Command, mode autostart.Mode, cfg *config.Config, configPath string) error {
	if configPath == "" {
		configPath = config.SystemPath()
		if mode == autostart.UserMode {
			configPath = config.UserPath()
		}
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.WriteConfig(cfg, configPath); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(out, "  ✓ Written config → %s\n", configPath)
	} else {
		fmt.Fprintf(out, "  ✓ Keeping existing config %s\n", configPath)
	}

	execPath, err := os.Executable()
	if err != nil {
		return err
	}
	execPath, err = filepath.Abs(filepath.Clean(execPath))
	if err != nil {
		return err
	}

	mgr := autostart.NewWithMode(mode)
	if err := mgr.Install(execPath, configPath); err != nil {
		return fmt.Errorf("registering service: %w", err)
	}
	fmt.Fprintf(out, "  ✓ Registered service %s (%s)\n", mgr.ServiceName(), mode)
	return nil
}
