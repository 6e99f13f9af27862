package rct

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/rctmon/internal/logger"
)

// FrameParser extracts response frames from a byte stream incrementally. It
// never needs a whole frame in a single buffer: Parse consumes what it can,
// remembers its position, and resumes when the caller supplies a buffer that
// has grown at the tail. Garbage before a genuine start token is skipped, so
// the parser resynchronises after noise or a lost partial frame.
//
// The caller owns the buffer. Parse treats it as the same logical stream
// across calls: bytes before CurrentPos are done (parsed or discarded),
// bytes after it are parsed next. When the caller compacts the buffer by
// moving the unparsed tail to the front it must call Rewinded.
//
// A FrameParser is not safe for concurrent use.
type FrameParser struct {
	ignoreCRCMismatch bool

	// currentPos is the resume offset into the caller's escaped buffer.
	currentPos int
	// completeFrame is true when the previous Parse emitted a frame (or the
	// parser is idle); false when it ran out of bytes or found only noise.
	completeFrame bool
	// escapeIndexes holds the absolute positions, in the escaped buffer the
	// caller supplied, of every escape byte removed while unescaping the
	// current frame. They translate unescaped consumption back into buffer
	// offsets.
	escapeIndexes []int
}

// NewFrameParser returns a parser in the idle state. With ignoreCRCMismatch
// a failed checksum downgrades from an error to CRCOk=false on the emitted
// frame.
func NewFrameParser(ignoreCRCMismatch bool) *FrameParser {
	p := &FrameParser{ignoreCRCMismatch: ignoreCRCMismatch}
	p.Reset()
	return p
}

// Reset clears per-frame state. The parser is idle afterwards; the resume
// position is kept.
func (p *FrameParser) Reset() {
	p.completeFrame = true
	p.escapeIndexes = p.escapeIndexes[:0]
}

// Rewinded tells the parser that the caller moved the unparsed tail of the
// buffer to offset zero.
func (p *FrameParser) Rewinded() {
	p.currentPos = 0
}

// CurrentPos returns the offset into the caller's buffer up to which all
// bytes have been processed.
func (p *FrameParser) CurrentPos() int {
	return p.currentPos
}

// Complete reports whether the last Parse call emitted a frame.
func (p *FrameParser) Complete() bool {
	return p.completeFrame
}

// EscapeIndexes returns the escape positions recorded for the frame being
// parsed. The slice is reused across calls; callers must not retain it.
func (p *FrameParser) EscapeIndexes() []int {
	return p.escapeIndexes
}

// findStart scans for a genuine start token at or after from. A 0x2B
// preceded by an escape token is payload, not a start. A run of two or more
// consecutive 0x2B bytes is end-of-block padding; no byte of the run is a
// start, scanning resumes after it.
func (p *FrameParser) findStart(buffer []byte, from int) int {
	i := from
	for i < len(buffer) {
		if buffer[i] == StartToken && (i == 0 || buffer[i-1] != EscapeToken) {
			if i+1 < len(buffer) && buffer[i+1] == StartToken {
				j := i + 1
				for j+1 < len(buffer) && buffer[j+1] == StartToken {
					j++
				}
				logger.Debug("Skipping end-of-block run", "from", i, "to", j)
				i = j + 1
				continue
			}
			return i
		}
		i++
	}
	return -1
}

// unescape removes escape tokens from buffer[start:]. Every removed escape
// is recorded in escapeIndexes as an absolute position in the escaped
// buffer. An unmatched escape token at the very end of the supplied bytes is
// excluded from the result so the frame reads as incomplete until its
// escaped byte arrives.
func (p *FrameParser) unescape(buffer []byte, start int) []byte {
	esc := buffer[start:]
	p.escapeIndexes = p.escapeIndexes[:0]
	out := make([]byte, 0, len(esc))
	for k := 0; k < len(esc); {
		if esc[k] == EscapeToken {
			if k == len(esc)-1 {
				// Trailing escape with its byte still in flight.
				break
			}
			if esc[k+1] == StartToken || esc[k+1] == EscapeToken {
				p.escapeIndexes = append(p.escapeIndexes, start+k)
				out = append(out, esc[k+1])
				k += 2
				continue
			}
		}
		out = append(out, esc[k])
		k++
	}
	return out
}

// Parse attempts to extract one frame from buffer starting at CurrentPos.
// It returns (frame, nil) on success, (nil, nil) when no frame is available
// yet (noise drained or frame incomplete, distinguishable via Complete), and
// (nil, err) on an invalid command byte or a CRC mismatch. On an incomplete
// frame the resume position moves to the start token, so noise scanned
// before it is consumed and buffer compaction can discard it. On an error
// the resume position is left untouched; the caller decides whether to skip
// a byte and resynchronise.
func (p *FrameParser) Parse(buffer []byte) (*ResponseFrame, error) {
	if p.completeFrame && p.currentPos < len(buffer) {
		p.Reset()
	}

	start := p.findStart(buffer, p.currentPos)
	if start < 0 {
		logger.Debug("No start token found", "scanned", len(buffer)-p.currentPos)
		p.currentPos = len(buffer)
		p.completeFrame = false
		return nil, nil
	}

	unescaped := p.unescape(buffer, start)

	if len(unescaped) < 2 {
		// Noise before the start token is consumed; the next call resumes
		// at the start token itself.
		p.currentPos = start
		p.completeFrame = false
		return nil, nil
	}

	cmd := Command(unescaped[1])
	if !cmd.Valid() || cmd == CmdExtension {
		p.completeFrame = false
		return nil, &InvalidCommandError{Byte: unescaped[1], Offset: 1}
	}

	// Header: start, command, length field, plant address if any, OID.
	headerLen := 1 + 1 + 1 + 4
	if cmd.IsLong() {
		headerLen++
	}
	if cmd.IsPlant() {
		headerLen += 4
	}
	if len(unescaped) < headerLen {
		logger.Debug("Frame header incomplete", "have", len(unescaped), "need", headerLen)
		p.currentPos = start
		p.completeFrame = false
		return nil, nil
	}

	var dataLen int
	idx := 2
	if cmd.IsLong() {
		dataLen = int(binary.BigEndian.Uint16(unescaped[2:4]))
		idx = 4
	} else {
		dataLen = int(unescaped[2])
		idx = 3
	}

	// The length field counts the plant address (when present), the OID and
	// the payload. frameLen counts from the start token through the CRC.
	frameLen := headerLen + dataLen + 2
	payloadLen := dataLen
	var address uint32
	if cmd.IsPlant() {
		frameLen -= 8
		payloadLen -= 8
		address = binary.BigEndian.Uint32(unescaped[idx : idx+4])
		idx += 4
	} else {
		frameLen -= 4
		payloadLen -= 4
	}
	if payloadLen < 0 {
		p.completeFrame = false
		return nil, fmt.Errorf("frame length field %d too small for %s", dataLen, cmd)
	}

	oid := binary.BigEndian.Uint32(unescaped[idx : idx+4])
	idx += 4

	if len(unescaped) < frameLen {
		logger.Debug("Frame body incomplete",
			"command", cmd.String(),
			"oid", fmt.Sprintf("0x%08X", oid),
			"have", len(unescaped),
			"need", frameLen)
		p.currentPos = start
		p.completeFrame = false
		return nil, nil
	}

	payload := make([]byte, payloadLen)
	copy(payload, unescaped[idx:idx+payloadLen])
	idx += payloadLen

	received := binary.BigEndian.Uint16(unescaped[idx : idx+2])
	computed := CRC16(unescaped[1:idx])
	crcOk := received == computed
	if !crcOk && !p.ignoreCRCMismatch {
		p.completeFrame = false
		return nil, &CRCMismatchError{Received: received, Computed: computed, Offset: idx}
	}

	// Advance past the frame in the escaped buffer: the unescaped frame
	// length plus one byte per escape that was removed inside it.
	end := start + frameLen
	for _, e := range p.escapeIndexes {
		if e < end {
			end++
		}
	}
	p.currentPos = end
	p.completeFrame = true

	logger.Debug("Frame parsed",
		"command", cmd.String(),
		"oid", fmt.Sprintf("0x%08X", oid),
		"payload_len", payloadLen,
		"crc_ok", crcOk,
		"next_pos", p.currentPos)

	return &ResponseFrame{
		Command:     cmd,
		Type:        cmd.Type(),
		OID:         oid,
		Address:     address,
		Payload:     payload,
		CRC16:       computed,
		CRCOk:       crcOk,
		FrameLength: frameLen - 1,
	}, nil
}
