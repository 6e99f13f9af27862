package commands

import (
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/rctmon/internal/logger"
	"github.com/marmos91/rctmon/internal/metrics"
	"github.com/marmos91/rctmon/internal/monitor"
	"github.com/marmos91/rctmon/internal/registry"
	"github.com/marmos91/rctmon/internal/sink/influx"
)

var (
	flagInfluxHost    string
	flagInfluxPort    int
	flagMetricsListen string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll the inverter continuously",
	Long: `Poll the power readings every few seconds and the battery and energy
counters every minute. Readings are summarised to the log, pushed to
InfluxDB when a sink is configured, and exported as Prometheus gauges when
the metrics endpoint is enabled.

The session is kept alive across timeouts and disconnects: the loop
reconnects immediately when the inverter closes the connection and backs
off linearly on connection failures.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&flagInfluxHost, "influx-host", "", "host of the InfluxDB instance to push readings to")
	monitorCmd.Flags().IntVar(&flagInfluxPort, "influx-port", 0, "port of the InfluxDB instance")
	monitorCmd.Flags().StringVar(&flagMetricsListen, "metrics-listen", "", "listen address of the Prometheus endpoint, e.g. :9100")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flagInfluxHost != "" {
		cfg.Influx.Enabled = true
		cfg.Influx.Host = flagInfluxHost
	}
	if flagInfluxPort != 0 {
		cfg.Influx.Port = flagInfluxPort
	}
	if flagMetricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = flagMetricsListen
	}

	var sink monitor.Sink
	if cfg.Influx.Enabled {
		writer := influx.New(influx.Config{
			URL:    cfg.Influx.URL(),
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		defer writer.Close()
		sink = writer
		logger.Info("Pushing readings to InfluxDB", "url", cfg.Influx.URL())
	}

	var sessionMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		sessionMetrics = metrics.New(reg)
		metrics.NewServer(cfg.Metrics.Listen, reg).Start(ctx)
	}

	mon := monitor.New(monitor.Config{
		Session:           sessionConfig(),
		ShortInterval:     cfg.Monitor.ShortInterval,
		LongInterval:      cfg.Monitor.LongInterval,
		MaxReadRetries:    cfg.Monitor.MaxReadRetries,
		MaxConnectRetries: cfg.Monitor.MaxConnectRetries,
		ReconnectDelay:    cfg.Monitor.ReconnectDelay,
	}, registry.Default(), sink, sessionMetrics)

	return mon.Run(ctx)
}
