// Package metrics provides Prometheus instrumentation for the inverter
// session and the monitoring loop, plus the HTTP server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for the inverter session.
//
// All metrics use the rctmon_ prefix. Follows the nil receiver pattern - all
// methods handle nil gracefully for zero overhead when metrics are disabled.
type Metrics struct {
	// FramesReceived counts parsed response frames by command
	FramesReceived *prometheus.CounterVec

	// BytesRead counts bytes drained from the inverter socket
	BytesRead prometheus.Counter

	// CRCErrors counts frames with a failed checksum
	CRCErrors prometheus.Counter

	// ReceiveTimeouts counts socket receive timeouts
	ReceiveTimeouts prometheus.Counter

	// Reconnects counts session reconnects by the monitoring loop
	Reconnects prometheus.Counter

	// UnknownOids counts responses whose OID the registry does not know
	UnknownOids prometheus.Counter

	// BufferRewinds counts receive-buffer compactions
	BufferRewinds prometheus.Counter

	// ReadDuration tracks the latency of a full READ round trip
	ReadDuration prometheus.Histogram

	// Readings exports the last decoded numeric value per reading name
	Readings *prometheus.GaugeVec
}

// New creates and registers session metrics.
//
// Parameters:
//   - reg: Prometheus registerer. Pass nil to create metrics without
//     registration (useful for testing or when metrics are disabled).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rctmon_frames_received_total",
				Help: "Total response frames parsed, by command",
			},
			[]string{"command"},
		),

		BytesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rctmon_bytes_read_total",
				Help: "Total bytes read from the inverter socket",
			},
		),

		CRCErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rctmon_crc_errors_total",
				Help: "Total frames whose CRC16 verification failed",
			},
		),

		ReceiveTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rctmon_receive_timeouts_total",
				Help: "Total socket receive timeouts",
			},
		),

		Reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rctmon_reconnects_total",
				Help: "Total reconnects to the inverter",
			},
		),

		UnknownOids: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rctmon_unknown_oids_total",
				Help: "Total response frames with an OID missing from the registry",
			},
		),

		BufferRewinds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rctmon_buffer_rewinds_total",
				Help: "Total receive-buffer compactions",
			},
		),

		ReadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rctmon_read_duration_seconds",
				Help:    "Latency of a READ request round trip",
				Buckets: prometheus.DefBuckets,
			},
		),

		Readings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rctmon_reading",
				Help: "Last decoded numeric value per reading",
			},
			[]string{"name"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesReceived,
			m.BytesRead,
			m.CRCErrors,
			m.ReceiveTimeouts,
			m.Reconnects,
			m.UnknownOids,
			m.BufferRewinds,
			m.ReadDuration,
			m.Readings,
		)
	}

	return m
}

// ObserveFrame records a parsed frame.
func (m *Metrics) ObserveFrame(command string, crcOk bool) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(command).Inc()
	if !crcOk {
		m.CRCErrors.Inc()
	}
}

// ObserveBytesRead records a socket read.
func (m *Metrics) ObserveBytesRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))
}

// ObserveTimeout records a receive timeout.
func (m *Metrics) ObserveTimeout() {
	if m == nil {
		return
	}
	m.ReceiveTimeouts.Inc()
}

// ObserveReconnect records a session reconnect.
func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// ObserveUnknownOid records a response with an unknown OID.
func (m *Metrics) ObserveUnknownOid() {
	if m == nil {
		return
	}
	m.UnknownOids.Inc()
}

// ObserveRewind records a buffer compaction.
func (m *Metrics) ObserveRewind() {
	if m == nil {
		return
	}
	m.BufferRewinds.Inc()
}

// ObserveReadDuration records the latency of a READ round trip.
func (m *Metrics) ObserveReadDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ReadDuration.Observe(seconds)
}

// SetReading exports the last value of a numeric reading.
func (m *Metrics) SetReading(name string, value float64) {
	if m == nil {
		return
	}
	m.Readings.WithLabelValues(name).Set(value)
}
