package monitor

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/rctmon/internal/client"
	"github.com/marmos91/rctmon/internal/protocol/rct"
	"github.com/marmos91/rctmon/internal/registry"
)

// fakeInverter answers READ requests from a value table over real TCP.
type fakeInverter struct {
	t  *testing.T
	ln net.Listener

	mu       sync.Mutex
	payloads map[uint32][]byte
}

func newFakeInverter(t *testing.T) *fakeInverter {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeInverter{t: t, ln: ln, payloads: make(map[uint32][]byte)}

	// Answer every object of both reading sets with a value of its type.
	reg := registry.Default()
	for _, set := range [][]Reading{ShortIntervalReadings, LongIntervalReadings} {
		for _, r := range set {
			oi, err := reg.GetByName(r.OidName)
			require.NoError(t, err)
			var value any
			switch oi.ResponseDataType {
			case rct.DataTypeFloat:
				value = float32(21.5)
			case rct.DataTypeBool:
				value = false
			default:
				t.Fatalf("unexpected data type %s in reading set", oi.ResponseDataType)
			}
			payload, err := rct.EncodeValue(oi.ResponseDataType, value)
			require.NoError(t, err)
			f.payloads[oi.ObjectID] = payload
		}
	}

	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeInverter) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeInverter) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeInverter) handle(conn net.Conn) {
	defer conn.Close()

	parser := rct.NewFrameParser(false)
	buf := make([]byte, 1024)
	filled := 0

	for {
		n, err := conn.Read(buf[filled:])
		if err != nil {
			return
		}
		filled += n

		for {
			frame, err := parser.Parse(buf[:filled])
			if err != nil || frame == nil {
				break
			}
			if frame.Command != rct.CmdRead {
				continue
			}
			f.mu.Lock()
			payload, ok := f.payloads[frame.OID]
			f.mu.Unlock()
			if !ok {
				continue
			}
			response, err := rct.MakeFrame(rct.CmdResponse, frame.OID, payload, 0)
			if err != nil {
				return
			}
			if _, err := conn.Write(response); err != nil {
				return
			}
		}

		if parser.CurrentPos() == filled {
			filled = 0
			parser.Rewinded()
		}
	}
}

// recorderSink collects written points.
type recorderSink struct {
	mu     sync.Mutex
	points []map[string]any
}

func (s *recorderSink) WritePoint(_ context.Context, _ string, _ map[string]string, fields map[string]any, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.points = append(s.points, copied)
	return nil
}

func (s *recorderSink) snapshot() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any{}, s.points...)
}

// flakySink fails a configured number of writes, then behaves, and records
// how often the monitor reconnected it.
type flakySink struct {
	mu         sync.Mutex
	failures   int
	reconnects int
	points     []map[string]any
}

func (s *flakySink) WritePoint(_ context.Context, _ string, _ map[string]string, fields map[string]any, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("connection refused")
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.points = append(s.points, copied)
	return nil
}

func (s *flakySink) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
}

func (s *flakySink) counts() (reconnects, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects, len(s.points)
}

func testMonitorConfig(port int) Config {
	return Config{
		Session: client.Config{
			Host:    "127.0.0.1",
			Port:    port,
			Timeout: 500 * time.Millisecond,
		},
		ShortInterval:     5 * time.Millisecond,
		LongInterval:      20 * time.Millisecond,
		MaxReadRetries:    3,
		MaxConnectRetries: 3,
		ReconnectDelay:    time.Millisecond,
	}
}

func TestMonitorPushesReadings(t *testing.T) {
	inverter := newFakeInverter(t)
	sink := &recorderSink{}

	mon := New(testMonitorConfig(inverter.port()), registry.Default(), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	// Wait until both the short and the long set were pushed.
	require.Eventually(t, func() bool {
		for _, point := range sink.snapshot() {
			if _, ok := point["charge_battery"]; ok {
				return true
			}
		}
		return len(sink.snapshot()) >= 4
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	points := sink.snapshot()
	require.NotEmpty(t, points)

	// The first point is the short set with the derived panel sum.
	first := points[0]
	assert.Equal(t, 21.5, first["power_panel_0"])
	assert.Equal(t, 21.5, first["power_battery"])
	assert.Equal(t, 43.0, first["power_panel"])

	var sawLong bool
	for _, point := range points {
		if value, ok := point["charge_battery"]; ok {
			sawLong = true
			assert.Equal(t, 21.5, value)
			assert.Equal(t, false, point["grid_separated"])
		}
	}
	assert.True(t, sawLong, "long interval set must be pushed")
}

func TestMonitorRecoversFromSinkFailures(t *testing.T) {
	// The first pushes fail. The monitor must log, wait, reconnect the
	// sink and keep the inverter session polling: no read retry is burnt
	// and readings flow once the sink is back.
	inverter := newFakeInverter(t)
	sink := &flakySink{failures: 2}

	cfg := testMonitorConfig(inverter.port())
	cfg.SinkRetryDelay = time.Millisecond
	mon := New(cfg, registry.Default(), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	require.Eventually(t, func() bool {
		reconnects, points := sink.counts()
		return reconnects >= 2 && points >= 1
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	reconnects, points := sink.counts()
	assert.GreaterOrEqual(t, reconnects, 2, "one sink reconnect per failed push")
	assert.GreaterOrEqual(t, points, 1, "polling resumes after the sink recovers")
}

func TestMonitorGivesUpWithoutInverter(t *testing.T) {
	// Grab a port and close it again so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := testMonitorConfig(port)
	cfg.MaxConnectRetries = 2
	mon := New(cfg, registry.Default(), nil, nil)

	err = mon.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up")
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	inverter := newFakeInverter(t)
	mon := New(testMonitorConfig(inverter.port()), registry.Default(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, mon.Run(ctx))
}

func TestDecodeReading(t *testing.T) {
	reg := registry.Default()

	soc, err := reg.GetByName("battery.soc")
	require.NoError(t, err)
	payload, err := rct.EncodeValue(rct.DataTypeFloat, float32(0.84999))
	require.NoError(t, err)
	value, err := decodeReading(soc, payload)
	require.NoError(t, err)
	assert.Equal(t, 0.8, value, "floats are rounded to one decimal")

	island, err := reg.GetByName("prim_sm.island_flag")
	require.NoError(t, err)
	value, err = decodeReading(island, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, true, value)

	fault, err := reg.GetByName("fault[0].flt")
	require.NoError(t, err)
	value, err = decodeReading(fault, []byte{0x00, 0x00, 0x00, 0x2A})
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)
}

func TestNumeric(t *testing.T) {
	v, ok := numeric(1.5)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = numeric(int64(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = numeric(true)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = numeric("raw")
	assert.False(t, ok)
}

func TestFieldsFor(t *testing.T) {
	readings := map[string]any{
		"battery.soc":     0.8,
		"battery.voltage": 52.4,
	}
	fields := fieldsFor(LongIntervalReadings, readings)
	assert.Equal(t, map[string]any{
		"charge_battery":  0.8,
		"battery_voltage": 52.4,
	}, fields)
}
