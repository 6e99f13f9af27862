// Package influx pushes telemetry readings to an InfluxDB instance. It is
// the only sink the monitoring loop ships with; the loop talks to it through
// a narrow interface so tests can substitute a recorder.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/marmos91/rctmon/internal/logger"
)

// Default connection parameters, matching the appliance-style InfluxDB 1.x
// setups the inverter community runs (token is user:password there).
const (
	DefaultOrg    = "-"
	DefaultBucket = "photovoltaic/autogen"
	DefaultToken  = "admin:admin"
)

// Config holds the sink parameters.
type Config struct {
	// URL is the base URL, e.g. "http://influx.local:8086".
	URL string
	// Token authenticates the client; "user:password" for InfluxDB 1.x
	// compatibility endpoints.
	Token string
	// Org is the organisation, "-" for 1.x compatibility.
	Org string
	// Bucket is the target bucket or "database/retention-policy".
	Bucket string
}

func (c Config) withDefaults() Config {
	if c.Token == "" {
		c.Token = DefaultToken
	}
	if c.Org == "" {
		c.Org = DefaultOrg
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	return c
}

// Writer is a synchronous InfluxDB sink.
type Writer struct {
	cfg    Config
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// New connects the sink. The underlying client is lazy; connection problems
// surface on the first WritePoint.
func New(cfg Config) *Writer {
	cfg = cfg.withDefaults()
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Writer{
		cfg:    cfg,
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// WritePoint writes one measurement point.
func (w *Writer) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, ts time.Time) error {
	point := influxdb2.NewPoint(measurement, tags, fields, ts)
	if err := w.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write to influxdb %s: %w", w.cfg.URL, err)
	}
	logger.Debug("Wrote point to InfluxDB", "measurement", measurement, "fields", len(fields))
	return nil
}

// Reconnect tears down the HTTP client and builds a fresh one. The
// monitoring loop calls it after a write failure before retrying.
func (w *Writer) Reconnect() {
	w.client.Close()
	w.client = influxdb2.NewClient(w.cfg.URL, w.cfg.Token)
	w.write = w.client.WriteAPIBlocking(w.cfg.Org, w.cfg.Bucket)
	logger.Info("Reconnected to InfluxDB", "url", w.cfg.URL)
}

// Close releases the HTTP client.
func (w *Writer) Close() {
	w.client.Close()
}
