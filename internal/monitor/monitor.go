// Package monitor drives the polling loop: it keeps a session to the
// inverter alive across timeouts and disconnects, polls the short- and
// long-interval reading sets, summarises them to the log and pushes them to
// the telemetry sink.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/rctmon/internal/client"
	"github.com/marmos91/rctmon/internal/logger"
	"github.com/marmos91/rctmon/internal/metrics"
	"github.com/marmos91/rctmon/internal/registry"
)

// Sink receives telemetry points. The InfluxDB writer implements it; tests
// substitute a recorder.
type Sink interface {
	WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, ts time.Time) error
}

// ReconnectableSink is implemented by sinks that can rebuild their
// connection after a write failure, like the InfluxDB writer.
type ReconnectableSink interface {
	Sink
	Reconnect()
}

// sinkWriteError marks a failed telemetry push. Sink failures get their own
// recovery path: the inverter session is healthy and must not be torn down
// because the database is unreachable.
type sinkWriteError struct {
	err error
}

func (e *sinkWriteError) Error() string {
	return "push readings: " + e.err.Error()
}

func (e *sinkWriteError) Unwrap() error {
	return e.err
}

// Measurement parameters for the sink.
const (
	measurement = "pv"
	inverterTag = "RCT"
)

// Config holds the monitoring loop parameters.
type Config struct {
	// Session configures the inverter session. IgnoreCRC is forced on by
	// New: a single flipped bit must not stall the polling loop.
	Session client.Config

	// ShortInterval is the poll period of the power readings (default 5s).
	ShortInterval time.Duration
	// LongInterval is the poll period of the battery/energy readings
	// (default 1m).
	LongInterval time.Duration

	// MaxReadRetries bounds consecutive failed poll rounds before the
	// session is reopened (default 5).
	MaxReadRetries int
	// MaxConnectRetries bounds consecutive failed connection attempts
	// before Run gives up (default 5).
	MaxConnectRetries int
	// ReconnectDelay is the base reconnect backoff, scaled linearly with
	// the attempt number (default 5s).
	ReconnectDelay time.Duration

	// SinkRetryDelay is how long to wait after a failed telemetry push
	// before reconnecting the sink and retrying (default 15s).
	SinkRetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ShortInterval == 0 {
		c.ShortInterval = 5 * time.Second
	}
	if c.LongInterval == 0 {
		c.LongInterval = time.Minute
	}
	if c.MaxReadRetries == 0 {
		c.MaxReadRetries = 5
	}
	if c.MaxConnectRetries == 0 {
		c.MaxConnectRetries = 5
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.SinkRetryDelay == 0 {
		c.SinkRetryDelay = 15 * time.Second
	}
	return c
}

// Monitor owns the polling loop.
type Monitor struct {
	cfg     Config
	reg     *registry.Registry
	sink    Sink // nil: log-only monitoring
	metrics *metrics.Metrics

	// openSession is swapped by tests to connect to an in-process inverter.
	openSession func() (*client.Reader, error)
}

// New builds a monitor. sink may be nil for log-only operation.
func New(cfg Config, reg *registry.Registry, sink Sink, m *metrics.Metrics) *Monitor {
	cfg = cfg.withDefaults()
	cfg.Session.IgnoreCRC = true

	mon := &Monitor{cfg: cfg, reg: reg, sink: sink, metrics: m}
	mon.openSession = func() (*client.Reader, error) {
		return client.Open(mon.cfg.Session, mon.reg, mon.metrics)
	}
	return mon
}

// Run polls until the context is cancelled or the connect retry budget is
// exhausted. A session that the inverter closes is reopened immediately;
// failed connection attempts back off linearly.
func (m *Monitor) Run(ctx context.Context) error {
	connectRetries := 0

	for connectRetries < m.cfg.MaxConnectRetries {
		if ctx.Err() != nil {
			return nil
		}

		reader, err := m.openSession()
		if err != nil {
			connectRetries++
			logger.Error("Cannot connect to inverter",
				logger.KeyHost, m.cfg.Session.Host,
				logger.KeyRetry, connectRetries,
				"error", err)
			m.metrics.ObserveReconnect()
			if !sleepCtx(ctx, time.Duration(connectRetries)*m.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}

		serverClosed := m.pollSession(ctx, reader)
		_ = reader.Close()

		if ctx.Err() != nil {
			return nil
		}

		m.metrics.ObserveReconnect()
		if serverClosed {
			logger.Error("Inverter closed the connection, reconnecting")
			connectRetries = 0
			continue
		}

		connectRetries++
		logger.Error("Read retries exhausted, reconnecting",
			logger.KeyRetry, connectRetries,
			"delay", time.Duration(connectRetries)*m.cfg.ReconnectDelay)
		if !sleepCtx(ctx, time.Duration(connectRetries)*m.cfg.ReconnectDelay) {
			return nil
		}
	}

	return fmt.Errorf("giving up after %d failed attempts to connect to the inverter", m.cfg.MaxConnectRetries)
}

// pollSession polls one session until the read retry budget is exhausted,
// the inverter closes the connection, or the context is cancelled. It
// reports whether the session ended because the inverter closed it.
func (m *Monitor) pollSession(ctx context.Context, reader *client.Reader) bool {
	var lastLong time.Time
	readRetries := 0

	for readRetries < m.cfg.MaxReadRetries && !reader.ServerClosed() {
		if ctx.Err() != nil {
			return false
		}

		start := time.Now()

		if err := m.pollOnce(ctx, reader, start, &lastLong); err != nil {
			// A failed telemetry push is a sink problem, not a session
			// problem: log, wait, reconnect the sink and keep polling
			// without burning a read retry.
			var sinkErr *sinkWriteError
			if errors.As(err, &sinkErr) {
				logger.Error("Telemetry push failed", "error", sinkErr.err)
				if !sleepCtx(ctx, m.cfg.SinkRetryDelay) {
					return false
				}
				m.reconnectSink()
				continue
			}

			readRetries++
			if errors.Is(err, client.ErrTimeout) {
				logger.Error("Timeout when reading, retrying",
					logger.KeyRetry, readRetries)
				sleepCtx(ctx, time.Second)
				continue
			}
			if reader.ServerClosed() {
				break
			}
			logger.Error("Poll round failed", logger.KeyRetry, readRetries, "error", err)
			continue
		}
		readRetries = 0

		if remaining := m.cfg.ShortInterval - time.Since(start); remaining > 0 {
			if !sleepCtx(ctx, remaining) {
				return false
			}
		}
	}

	return reader.ServerClosed()
}

// pollOnce reads the short set, and the long set when due, then pushes a
// point per set to the sink.
func (m *Monitor) pollOnce(ctx context.Context, reader *client.Reader, start time.Time, lastLong *time.Time) error {
	readings, err := m.readSet(reader, ShortIntervalReadings)
	if err != nil {
		return err
	}
	m.logSummary("Short readings", ShortIntervalReadings, readings)

	fields := fieldsFor(ShortIntervalReadings, readings)
	// The combined panel power is derived, the inverter has no single OID
	// for it.
	p0, ok0 := readings["dc_conv.dc_conv_struct[0].p_dc"].(float64)
	p1, ok1 := readings["dc_conv.dc_conv_struct[1].p_dc"].(float64)
	if ok0 && ok1 {
		fields["power_panel"] = p0 + p1
	}
	if err := m.push(ctx, fields, start); err != nil {
		return err
	}

	if start.Sub(*lastLong) >= m.cfg.LongInterval {
		longReadings, err := m.readSet(reader, LongIntervalReadings)
		if err != nil {
			return err
		}
		m.logSummary("Long readings", LongIntervalReadings, longReadings)

		if err := m.push(ctx, fieldsFor(LongIntervalReadings, longReadings), start); err != nil {
			return err
		}
		*lastLong = start
	}

	return nil
}

// readSet reads one reading set and decodes the responses. Frames with a
// broken checksum are logged and left out.
func (m *Monitor) readSet(reader *client.Reader, set []Reading) (map[string]any, error) {
	frames, err := reader.ReadFrames(oidNames(set))
	if err != nil {
		return nil, err
	}

	readings := make(map[string]any, len(frames))
	for _, frame := range frames {
		oi, err := m.reg.GetByID(frame.OID)
		if err != nil {
			continue
		}
		if !frame.CRCOk {
			logger.Error("Wrong CRC in response", logger.KeyOidName, oi.Name)
			continue
		}
		value, err := decodeReading(oi, frame.Payload)
		if err != nil {
			logger.Error("Cannot decode reading", logger.KeyOidName, oi.Name, "error", err)
			continue
		}
		readings[oi.Name] = value
	}
	return readings, nil
}

// fieldsFor maps readings onto their sink field names and updates the
// prometheus reading gauges.
func fieldsFor(set []Reading, readings map[string]any) map[string]any {
	fields := make(map[string]any, len(set))
	for _, r := range set {
		value, ok := readings[r.OidName]
		if !ok {
			continue
		}
		fields[r.Field] = value
	}
	return fields
}

// push writes a point and exports the numeric fields as gauges. A nil sink
// means log-only monitoring.
func (m *Monitor) push(ctx context.Context, fields map[string]any, ts time.Time) error {
	for name, value := range fields {
		if f, ok := numeric(value); ok {
			m.metrics.SetReading(name, f)
		}
	}

	if m.sink == nil || len(fields) == 0 {
		return nil
	}

	tags := map[string]string{"inverter": inverterTag}
	if err := m.sink.WritePoint(ctx, measurement, tags, fields, ts); err != nil {
		return &sinkWriteError{err: err}
	}
	return nil
}

// reconnectSink rebuilds the sink connection when the sink supports it.
func (m *Monitor) reconnectSink() {
	if rs, ok := m.sink.(ReconnectableSink); ok {
		logger.Info("Reconnecting telemetry sink")
		rs.Reconnect()
	}
}

// logSummary prints one line per reading, in set order, with units.
func (m *Monitor) logSummary(title string, set []Reading, readings map[string]any) {
	unitByName := units(m.reg, set)
	logger.Info(title, "count", len(readings))
	for _, r := range set {
		value, ok := readings[r.OidName]
		if !ok {
			continue
		}
		logger.Info("  reading",
			logger.KeyReading, r.OidName,
			logger.KeyValue, value,
			logger.KeyUnit, unitByName[r.OidName])
	}
}

// sleepCtx sleeps for d or until the context is cancelled. It reports false
// on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
