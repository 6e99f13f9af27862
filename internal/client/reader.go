// Package client implements the inverter session: a long-lived TCP
// connection, a fixed-size receive buffer drained into the incremental frame
// parser, READ request dispatch and response correlation.
//
// The session is single-threaded by design. The inverter interleaves
// unsolicited broadcast frames with responses, arrives in arbitrary socket
// chunks and pads idle periods with start-token runs; all of that is handled
// by the parser, the reader only manages the buffer cursors around it.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/marmos91/rctmon/internal/logger"
	"github.com/marmos91/rctmon/internal/metrics"
	"github.com/marmos91/rctmon/internal/protocol/rct"
	"github.com/marmos91/rctmon/internal/registry"
)

// Default session parameters.
const (
	DefaultPort       = 8899
	DefaultTimeout    = 3 * time.Second
	DefaultBufferSize = 2048

	// maxFrameSize caps the rewind threshold, which is the smaller of this
	// value and half the buffer size: once less free space than that is
	// left behind the write cursor, the unparsed tail is compacted to the
	// front of the buffer.
	maxFrameSize = 1024
)

// ErrRemoteClosed reports that the inverter closed the connection. A
// zero-byte receive is the only way the device signals this.
var ErrRemoteClosed = errors.New("inverter closed the connection")

// ErrTimeout reports that a socket receive timed out. Non-fatal; callers
// retry or reconnect.
var ErrTimeout = errors.New("receive timeout")

// InvalidOidError reports a parsed response whose OID is not in the
// registry. The parser state is dumped to a file before it is returned.
type InvalidOidError struct {
	OID uint32
}

func (e *InvalidOidError) Error() string {
	return fmt.Sprintf("unknown OID received: 0x%08X", e.OID)
}

// FrameCallback receives frames pushed by the session. Handlers run on the
// session goroutine; a panicking handler is recovered and logged so it
// cannot corrupt the parser state.
type FrameCallback func(*rct.ResponseFrame)

// Config holds the session parameters.
type Config struct {
	// Host is the inverter host name or IP address.
	Host string
	// Port is the inverter TCP port, DefaultPort when zero.
	Port int
	// Timeout is the socket receive timeout, DefaultTimeout when zero.
	Timeout time.Duration
	// BufferSize is the receive buffer size in bytes, DefaultBufferSize
	// when zero. Must comfortably exceed the largest expected frame.
	BufferSize int
	// IgnoreCRC downgrades checksum mismatches to CRCOk=false on the frame.
	IgnoreCRC bool
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	return c
}

// Reader owns the TCP session with the inverter. It is not safe for
// concurrent use.
type Reader struct {
	cfg  Config
	conn net.Conn

	// buf is the receive buffer; filled marks the end of valid bytes.
	buf    []byte
	filled int

	parser  *rct.FrameParser
	reg     *registry.Registry
	onFrame FrameCallback

	// rewindThreshold: when filled grows past len(buf)-rewindThreshold the
	// unparsed tail is copied to the front so the next read cannot overflow.
	rewindThreshold int

	serverClosed bool
	metrics      *metrics.Metrics
}

// Open connects to the inverter and returns a ready session. The connection
// is closed by Close on every exit path the caller takes.
func Open(cfg Config, reg *registry.Registry, m *metrics.Metrics) (*Reader, error) {
	cfg = cfg.withDefaults()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to inverter %s: %w", addr, err)
	}

	threshold := maxFrameSize
	if half := cfg.BufferSize / 2; half < threshold {
		threshold = half
	}

	logger.Debug("Session opened",
		logger.KeyHost, cfg.Host,
		logger.KeyPort, cfg.Port,
		"buffer_size", cfg.BufferSize)

	return &Reader{
		cfg:             cfg,
		conn:            conn,
		buf:             make([]byte, cfg.BufferSize),
		parser:          rct.NewFrameParser(cfg.IgnoreCRC),
		reg:             reg,
		rewindThreshold: threshold,
		metrics:         m,
	}, nil
}

// NewWithConn wraps an existing connection. Used by tests and by callers
// that dial through a proxy.
func NewWithConn(conn net.Conn, cfg Config, reg *registry.Registry, m *metrics.Metrics) *Reader {
	cfg = cfg.withDefaults()
	threshold := maxFrameSize
	if half := cfg.BufferSize / 2; half < threshold {
		threshold = half
	}
	return &Reader{
		cfg:             cfg,
		conn:            conn,
		buf:             make([]byte, cfg.BufferSize),
		parser:          rct.NewFrameParser(cfg.IgnoreCRC),
		reg:             reg,
		rewindThreshold: threshold,
		metrics:         m,
	}
}

// Close releases the TCP connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// ServerClosed reports whether the inverter has closed the connection.
func (r *Reader) ServerClosed() bool {
	return r.serverClosed
}

// RegisterCallback installs a push handler. While set, received frames are
// delivered to it instead of being accumulated by RecvFrames.
func (r *Reader) RegisterCallback(fn FrameCallback) {
	r.onFrame = fn
}

// ReadFrame sends one READ for the named object and returns the matching
// response.
func (r *Reader) ReadFrame(oidName string) (*rct.ResponseFrame, error) {
	oi, err := r.reg.GetByName(oidName)
	if err != nil {
		return nil, err
	}
	return r.readFrame(oi, nil)
}

// ReadFrames sends READs one object at a time and returns the responses in
// request order. Unsolicited frames arriving in between are delivered to the
// registered callback if any, otherwise dropped with a warning.
func (r *Reader) ReadFrames(oidNames []string) ([]*rct.ResponseFrame, error) {
	result := make([]*rct.ResponseFrame, 0, len(oidNames))
	for _, name := range oidNames {
		oi, err := r.reg.GetByName(name)
		if err != nil {
			return result, err
		}
		logger.Debug("Sending read command", logger.KeyOidName, name)
		frame, err := r.readFrame(oi, nil)
		if err != nil {
			return result, err
		}
		result = append(result, frame)
	}
	return result, nil
}

// readFrame sends one READ and receives until a response with a wanted OID
// arrives. Other frames go to the previously registered callback.
func (r *Reader) readFrame(oi registry.ObjectInfo, wantedIDs map[uint32]struct{}) (*rct.ResponseFrame, error) {
	if wantedIDs == nil {
		wantedIDs = map[uint32]struct{}{oi.ObjectID: {}}
	}

	var response *rct.ResponseFrame
	prev := r.onFrame
	r.onFrame = func(frame *rct.ResponseFrame) {
		if _, ok := wantedIDs[frame.OID]; ok && response == nil {
			logger.Debug("Received wanted frame", logger.KeyOid, fmt.Sprintf("0x%08X", frame.OID))
			response = frame
			return
		}
		if prev != nil {
			prev(frame)
			return
		}
		logger.Warn("Discarding unsolicited frame",
			logger.KeyCommand, frame.Command.String(),
			logger.KeyOid, fmt.Sprintf("0x%08X", frame.OID))
	}
	defer func() { r.onFrame = prev }()

	start := time.Now()

	request, err := rct.MakeReadFrame(oi.ObjectID)
	if err != nil {
		return nil, err
	}
	if err := r.conn.SetWriteDeadline(time.Now().Add(r.cfg.Timeout)); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := r.conn.Write(request); err != nil {
		return nil, fmt.Errorf("send READ %s: %w", oi.Name, err)
	}

	for response == nil {
		if _, err := r.RecvFrames(1); err != nil {
			return nil, err
		}
		if r.serverClosed && response == nil {
			return nil, ErrRemoteClosed
		}
	}

	r.metrics.ObserveReadDuration(time.Since(start).Seconds())
	return response, nil
}

// RecvFrames receives and parses frames. With expected > 0 it returns as
// soon as that many frames were parsed; with 0 it keeps receiving until the
// socket times out or the inverter closes the connection. Frames go to the
// registered callback when one is set, otherwise they are returned.
//
// On a timeout the buffered partial frame is left intact, so a retry resumes
// parsing exactly where this call stopped.
func (r *Reader) RecvFrames(expected int) ([]*rct.ResponseFrame, error) {
	var responses []*rct.ResponseFrame
	framesReceived := 0

	for {
		// Read more only when the parser is starved: an incomplete frame,
		// or every buffered byte already consumed.
		if !r.parser.Complete() || r.parser.CurrentPos() == r.filled {
			if err := r.fill(); err != nil {
				if errors.Is(err, ErrRemoteClosed) {
					return responses, nil
				}
				return responses, err
			}
		}

		frame, err := r.parser.Parse(r.buf[:r.filled])
		if err != nil {
			r.parser.DumpState(err.Error(), r.buf[:r.filled])
			return responses, fmt.Errorf("parse frame: %w", err)
		}

		if frame != nil {
			framesReceived++
			if err := r.handleFrame(frame, &responses); err != nil {
				return responses, err
			}

			// All buffered bytes consumed: the next socket read starts at
			// the front of the buffer again.
			if r.parser.CurrentPos() == r.filled {
				r.filled = 0
				r.parser.Rewinded()
			}

			if expected > 0 && framesReceived >= expected {
				return responses, nil
			}
		}

		// Compact before the buffer can overflow while a partial frame
		// straddles socket reads.
		if r.filled > len(r.buf)-r.rewindThreshold {
			if err := r.rewind(); err != nil {
				return responses, err
			}
		}
	}
}

// fill reads the next chunk from the socket into the free tail of the
// buffer. A zero-byte read means the inverter closed the connection.
func (r *Reader) fill() error {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.cfg.Timeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	n, err := r.conn.Read(r.buf[r.filled:])
	if n > 0 {
		r.metrics.ObserveBytesRead(n)
		logger.Debug("Read bytes from socket",
			logger.KeyBytesRead, n,
			logger.KeyBufferPos, r.filled)
		r.filled += n
	}
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			r.metrics.ObserveTimeout()
			return fmt.Errorf("%w after %s", ErrTimeout, r.cfg.Timeout)
		}
		if errors.Is(err, io.EOF) {
			r.serverClosed = true
			logger.Debug("Connection closed by inverter")
			return ErrRemoteClosed
		}
		return fmt.Errorf("socket read: %w", err)
	}
	if n == 0 {
		r.serverClosed = true
		return ErrRemoteClosed
	}
	return nil
}

// rewind copies the unparsed tail to the front of the buffer and resets the
// parser's resume position.
func (r *Reader) rewind() error {
	pos := r.parser.CurrentPos()
	remaining := copy(r.buf, r.buf[pos:r.filled])
	r.filled = remaining
	r.parser.Rewinded()
	r.metrics.ObserveRewind()

	logger.Debug("Receive buffer compacted",
		logger.KeyCurrentPos, pos,
		"remaining", remaining)

	if r.filled == len(r.buf) {
		return fmt.Errorf("frame larger than the %d byte receive buffer", len(r.buf))
	}
	return nil
}

// handleFrame validates the OID, logs the decoded value at debug level and
// routes the frame to the callback or the result list.
func (r *Reader) handleFrame(frame *rct.ResponseFrame, responses *[]*rct.ResponseFrame) error {
	r.metrics.ObserveFrame(frame.Command.String(), frame.CRCOk)

	oi, err := r.reg.GetByID(frame.OID)
	if err != nil {
		r.metrics.ObserveUnknownOid()
		msg := fmt.Sprintf("unknown OID received: 0x%08X", frame.OID)
		r.parser.DumpState(msg, r.buf[:r.filled])
		return &InvalidOidError{OID: frame.OID}
	}

	if logger.DebugEnabled() {
		logger.Debug("Response frame received",
			logger.KeyOidName, oi.Name,
			logger.KeyCommand, frame.Command.String(),
			logger.KeyCrcOk, frame.CRCOk,
			logger.KeyValue, FormatValue(oi, frame.Payload))
	}

	if r.onFrame != nil {
		r.dispatch(frame)
		return nil
	}
	*responses = append(*responses, frame)
	return nil
}

// dispatch invokes the callback, recovering panics so user handlers cannot
// corrupt the session state.
func (r *Reader) dispatch(frame *rct.ResponseFrame) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Frame callback panicked",
				logger.KeyOid, fmt.Sprintf("0x%08X", frame.OID),
				"panic", rec)
		}
	}()
	r.onFrame(frame)
}

// FormatValue decodes a payload per the object's data type and renders it
// for logs and CLI output. Unknown types and decode failures fall back to a
// hex dump.
func FormatValue(oi registry.ObjectInfo, payload []byte) string {
	if oi.ResponseDataType == rct.DataTypeUnknown {
		return fmt.Sprintf("% x", payload)
	}
	value, err := rct.DecodeValue(oi.ResponseDataType, payload)
	if err != nil {
		return fmt.Sprintf("% x", payload)
	}
	switch v := value.(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}
