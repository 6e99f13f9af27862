// Package commands implements the rctmon command line interface.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/rctmon/internal/client"
	"github.com/marmos91/rctmon/internal/config"
	"github.com/marmos91/rctmon/internal/logger"
)

// Build-time variables injected via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	cfgFile     string
	flagHost    string
	flagPort    int
	flagVerbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rctmon",
	Short: "Poll telemetry from RCT Power inverters",
	Long: `rctmon speaks the RCT Power serial-over-TCP protocol to read battery
state, power flows and energy counters from an inverter, and optionally
pushes them to InfluxDB.

Examples:
  # Read a single value
  rctmon read battery.soc --host inverter.local

  # Watch the unsolicited broadcast traffic
  rctmon listen --host inverter.local

  # Poll continuously and push to InfluxDB
  rctmon monitor --host inverter.local --influx-host influx.local

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: RCTMON_<SECTION>_<KEY> (use underscores for nested keys)

  Examples:
    RCTMON_LOGGING_LEVEL=DEBUG
    RCTMON_INVERTER_HOST=inverter.local`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Flags take precedence over environment and file values.
		if flagHost != "" {
			cfg.Inverter.Host = flagHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Inverter.Port = flagPort
		}
		if flagVerbose {
			cfg.Logging.Level = "DEBUG"
		}

		return logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/rctmon/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "host name or IP of the inverter")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", client.DefaultPort, "TCP port of the inverter")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI. Exit code 0 on success, 1 on unrecoverable errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// requireHost fails commands that need an inverter when none is configured.
func requireHost() error {
	if cfg.Inverter.Host == "" {
		return fmt.Errorf("no inverter host configured, use --host or the config file")
	}
	return nil
}

// sessionConfig builds the session parameters from the configuration.
func sessionConfig() client.Config {
	return client.Config{
		Host:       cfg.Inverter.Host,
		Port:       cfg.Inverter.Port,
		Timeout:    cfg.Inverter.Timeout,
		BufferSize: int(cfg.Inverter.BufferSize),
		IgnoreCRC:  cfg.Inverter.IgnoreCRC,
	}
}
