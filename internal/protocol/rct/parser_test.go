package rct

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lorem = `Lorem ipsum dolor sit amet, consetetur sadipscing elitr, sed
diam nonumy eirmod tempor invidunt ut labore et dolore magna aliquyam
erat, sed diam voluptua. At vero eos et accusam et justo duo dolores et
ea rebum. Stet clita kasd gubergren, no sea takimata sanctus est Lorem
ipsum dolor sit amet.`

// responseFrame builds a RESPONSE wire frame for tests.
func responseFrame(t *testing.T, cmd Command, oid uint32, dataType DataType, value any, address uint32) []byte {
	t.Helper()
	payload, err := EncodeValue(dataType, value)
	require.NoError(t, err)
	frame, err := MakeFrame(cmd, oid, payload, address)
	require.NoError(t, err)
	return frame
}

// checkResponse parses the buffer and verifies the decoded value.
func checkResponse(t *testing.T, p *FrameParser, buffer []byte, oid uint32, dataType DataType, value any) *ResponseFrame {
	t.Helper()
	frame, err := p.Parse(buffer)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.True(t, p.Complete())
	assert.True(t, frame.CRCOk)
	assert.Equal(t, oid, frame.OID)

	decoded, err := DecodeValue(dataType, frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, value, decoded)
	return frame
}

func TestParseSimpleFrame(t *testing.T) {
	buffer := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(-12345678), 0)
	p := NewFrameParser(false)
	frame := checkResponse(t, p, buffer, 42, DataTypeInt32, int32(-12345678))
	assert.Equal(t, CmdResponse, frame.Command)
	assert.Equal(t, FrameTypeStandard, frame.Type)
	assert.Equal(t, uint32(0), frame.Address)
	assert.Equal(t, len(buffer)-1, frame.FrameLength)
	assert.Equal(t, len(buffer), p.CurrentPos())
}

func TestParseLiteralVectors(t *testing.T) {
	t.Run("MinimalInt32Response", func(t *testing.T) {
		buffer := []byte{0x2B, 0x05, 0x08, 0x3C, 0x24, 0xF3, 0xE8, 0x00, 0x00, 0x00, 0x00, 0x94, 0x90}
		p := NewFrameParser(false)
		frame, err := p.Parse(buffer)
		require.NoError(t, err)
		require.NotNil(t, frame)
		assert.Equal(t, CmdResponse, frame.Command)
		assert.Equal(t, uint32(0x3C24F3E8), frame.OID)
		assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, frame.Payload)
		assert.True(t, frame.CRCOk)
	})

	t.Run("EscapedCRCByte", func(t *testing.T) {
		// The low CRC byte is a literal 0x2B, escaped on the wire.
		buffer := []byte{0x2B, 0x05, 0x06, 0x36, 0x23, 0xD8, 0x2A, 0x00, 0x02, 0xD0, 0x2D, 0x2B}
		p := NewFrameParser(false)
		frame, err := p.Parse(buffer)
		require.NoError(t, err)
		require.NotNil(t, frame)
		assert.Equal(t, uint32(0x3623D82A), frame.OID)
		assert.Equal(t, uint16(0xD02B), frame.CRC16)
		assert.True(t, frame.CRCOk)

		value, err := DecodeValue(DataTypeInt16, frame.Payload)
		require.NoError(t, err)
		assert.Equal(t, int16(2), value)
		assert.Equal(t, len(buffer), p.CurrentPos())
	})
}

func TestParseEscapedPayloads(t *testing.T) {
	for _, value := range []int32{0x2B000102, 0x2D000102, 0x2D00012B} {
		buffer := responseFrame(t, CmdResponse, 42, DataTypeInt32, value, 0)
		p := NewFrameParser(false)
		checkResponse(t, p, buffer, 42, DataTypeInt32, value)
		assert.Equal(t, len(buffer), p.CurrentPos())
	}
}

func TestParseEscapedOid(t *testing.T) {
	buffer := responseFrame(t, CmdResponse, 0x2B000102, DataTypeInt32, int32(789), 0)
	p := NewFrameParser(false)
	checkResponse(t, p, buffer, 0x2B000102, DataTypeInt32, int32(789))
}

func TestParseLeadingNoise(t *testing.T) {
	t.Run("PlainGarbage", func(t *testing.T) {
		frame := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(-12345678), 0)
		buffer := append([]byte{0x00, 0x00, 0x00, 0x00}, frame...)
		p := NewFrameParser(false)
		checkResponse(t, p, buffer, 42, DataTypeInt32, int32(-12345678))
		assert.Equal(t, len(buffer), p.CurrentPos())
	})

	t.Run("EscapedStartTokenInNoise", func(t *testing.T) {
		// The 0x2B is preceded by an escape token and must not be taken for
		// a frame start.
		frame := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(-12345678), 0)
		buffer := append([]byte{0x00, 0x2D, 0x2B, 0x00}, frame...)
		p := NewFrameParser(false)
		checkResponse(t, p, buffer, 42, DataTypeInt32, int32(-12345678))
	})
}

func TestParseGarbageOnly(t *testing.T) {
	buffer := []byte{0x00, 0x00, 0xFF, 0xFF, 0x01}
	p := NewFrameParser(false)
	frame, err := p.Parse(buffer)
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.False(t, p.Complete())
	assert.Equal(t, len(buffer), p.CurrentPos())
}

func TestParseSplitFrame(t *testing.T) {
	full := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(-12345678), 0)
	mid := len(full) / 2

	p := NewFrameParser(false)
	frame, err := p.Parse(full[:mid])
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.False(t, p.Complete())

	// The next read delivered the rest of the frame.
	checkResponse(t, p, full, 42, DataTypeInt32, int32(-12345678))
}

func TestParseIncompleteFrameConsumesLeadingNoise(t *testing.T) {
	full := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(7), 0)
	noise := []byte{0x00, 0x01, 0x02, 0x03}

	tests := []struct {
		name string
		cut  int // bytes of the frame present in the first buffer
	}{
		{"HeaderIncomplete", 2},
		{"BodyIncomplete", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := append(append([]byte{}, noise...), full[:tt.cut]...)

			p := NewFrameParser(false)
			frame, err := p.Parse(buffer)
			require.NoError(t, err)
			assert.Nil(t, frame)
			assert.False(t, p.Complete())
			// The scanned noise is consumed; the next call resumes at the
			// start token.
			assert.Equal(t, len(noise), p.CurrentPos())

			// Compact the way the session reader does: the noise is
			// discarded, only the partial frame moves to the front.
			remaining := copy(buffer, buffer[p.CurrentPos():])
			assert.Equal(t, tt.cut, remaining)
			p.Rewinded()

			combined := append(buffer[:remaining], full[tt.cut:]...)
			checkResponse(t, p, combined, 42, DataTypeInt32, int32(7))
		})
	}
}

func TestParseSplitAfterEscapeToken(t *testing.T) {
	// Cut the stream directly behind an escape token: the dangling escape
	// must not be consumed until its escaped byte arrives.
	full := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(0x2B000102), 0)
	escAt := -1
	for i, b := range full {
		if b == EscapeToken {
			escAt = i
			break
		}
	}
	require.Greater(t, escAt, 0)

	p := NewFrameParser(false)
	frame, err := p.Parse(full[:escAt+1])
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.False(t, p.Complete())

	checkResponse(t, p, full, 42, DataTypeInt32, int32(0x2B000102))
}

func TestParseTwoFrames(t *testing.T) {
	f1 := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(-12345678), 0)
	f2 := responseFrame(t, CmdResponse, 0x2B000102, DataTypeInt32, int32(789), 0)
	buffer := append(append([]byte{}, f1...), f2...)

	p := NewFrameParser(false)
	checkResponse(t, p, buffer, 42, DataTypeInt32, int32(-12345678))
	first := p.CurrentPos()
	assert.Equal(t, len(f1), first)

	checkResponse(t, p, buffer, 0x2B000102, DataTypeInt32, int32(789))
	assert.Greater(t, p.CurrentPos(), first)
	assert.Equal(t, len(buffer), p.CurrentPos())
}

func TestParseIncompleteSecondFrame(t *testing.T) {
	// First frame contains an escaped byte in the payload; its consumption
	// count in the escaped buffer must include the escape byte so the
	// second frame starts exactly at CurrentPos.
	f1 := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(0x2B000102), 0)
	f2 := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(789), 0)
	buffer := append(append([]byte{}, f1...), f2...)
	mid := len(f1) + len(f2)/2

	p := NewFrameParser(false)
	checkResponse(t, p, buffer[:mid], 42, DataTypeInt32, int32(0x2B000102))
	assert.Equal(t, 14, p.CurrentPos())
	assert.Equal(t, StartToken, buffer[p.CurrentPos()])

	frame, err := p.Parse(buffer[:mid])
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.False(t, p.Complete())

	checkResponse(t, p, buffer, 42, DataTypeInt32, int32(789))
}

func TestParsePlantFrame(t *testing.T) {
	buffer := responseFrame(t, CmdPlantResponse, 42, DataTypeInt32, int32(1234), 4711)
	p := NewFrameParser(false)
	frame := checkResponse(t, p, buffer, 42, DataTypeInt32, int32(1234))
	assert.Equal(t, CmdPlantResponse, frame.Command)
	assert.Equal(t, FrameTypePlant, frame.Type)
	assert.Equal(t, uint32(4711), frame.Address)
}

func TestParseStringFrame(t *testing.T) {
	buffer := responseFrame(t, CmdResponse, 42, DataTypeString, "Lorem ipsum dolor sit amet.", 0)
	p := NewFrameParser(false)
	checkResponse(t, p, buffer, 42, DataTypeString, "Lorem ipsum dolor sit amet.")
}

func TestParseFloatFrame(t *testing.T) {
	buffer := responseFrame(t, CmdResponse, 42, DataTypeFloat, float32(123456e-12), 0)
	p := NewFrameParser(false)
	checkResponse(t, p, buffer, 42, DataTypeFloat, float32(123456e-12))
}

func TestParseLongFrames(t *testing.T) {
	long := strings.Repeat(lorem, 2) // well past the short length field

	t.Run("Standard", func(t *testing.T) {
		buffer := responseFrame(t, CmdLongResponse, 42, DataTypeString, long, 0)
		p := NewFrameParser(false)
		frame := checkResponse(t, p, buffer, 42, DataTypeString, long)
		assert.Equal(t, CmdLongResponse, frame.Command)
		assert.Equal(t, FrameTypeStandard, frame.Type)
	})

	t.Run("Plant", func(t *testing.T) {
		buffer := responseFrame(t, CmdPlantLongResponse, 42, DataTypeString, long, 4711)
		p := NewFrameParser(false)
		frame := checkResponse(t, p, buffer, 42, DataTypeString, long)
		assert.Equal(t, uint32(4711), frame.Address)
		assert.Equal(t, FrameTypePlant, frame.Type)
	})
}

func TestParseEndOfBlockRun(t *testing.T) {
	frame := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(7), 0)
	buffer := append(append([]byte{}, frame...), 0x2B, 0x2B, 0x2B)

	p := NewFrameParser(false)
	checkResponse(t, p, buffer, 42, DataTypeInt32, int32(7))

	// The trailing padding run is not a new frame.
	next, err := p.Parse(buffer)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.False(t, p.Complete())
	assert.Equal(t, len(buffer), p.CurrentPos())
}

func TestParseBufferRewind(t *testing.T) {
	f1 := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(-12345678), 0)
	f2 := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(456), 0)
	buffer := append(append([]byte{}, f1...), f2...)

	p := NewFrameParser(false)
	checkResponse(t, p, buffer, 42, DataTypeInt32, int32(-12345678))

	// Compact the buffer the way the session reader does: move the unparsed
	// tail to the front and notify the parser.
	pos := p.CurrentPos()
	remaining := copy(buffer, buffer[pos:])
	p.Rewinded()

	checkResponse(t, p, buffer[:remaining], 42, DataTypeInt32, int32(456))
}

func TestParseInvalidCommand(t *testing.T) {
	t.Run("UndefinedByte", func(t *testing.T) {
		buffer := []byte{0x2B, 0x99, 0x04, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00}
		p := NewFrameParser(false)
		_, err := p.Parse(buffer)
		var invalid *InvalidCommandError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, byte(0x99), invalid.Byte)
		assert.Equal(t, 1, invalid.Offset)
	})

	t.Run("Extension", func(t *testing.T) {
		buffer := []byte{0x2B, 0x3C, 0x04, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00}
		p := NewFrameParser(false)
		_, err := p.Parse(buffer)
		var invalid *InvalidCommandError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, byte(0x3C), invalid.Byte)
	})
}

func TestParseCRCMismatch(t *testing.T) {
	buffer := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(7), 0)
	buffer[len(buffer)-1] ^= 0xFF // corrupt the CRC

	t.Run("Strict", func(t *testing.T) {
		p := NewFrameParser(false)
		_, err := p.Parse(buffer)
		var mismatch *CRCMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.NotEqual(t, mismatch.Received, mismatch.Computed)
	})

	t.Run("Ignored", func(t *testing.T) {
		p := NewFrameParser(true)
		frame, err := p.Parse(buffer)
		require.NoError(t, err)
		require.NotNil(t, frame)
		assert.False(t, frame.CRCOk)
		assert.Equal(t, uint32(42), frame.OID)
		assert.Equal(t, len(buffer), p.CurrentPos())
	})
}

func TestParseNoBytesAfterConsumedBuffer(t *testing.T) {
	buffer := responseFrame(t, CmdResponse, 42, DataTypeInt32, int32(7), 0)
	p := NewFrameParser(false)
	checkResponse(t, p, buffer, 42, DataTypeInt32, int32(7))

	frame, err := p.Parse(buffer)
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.False(t, p.Complete())
}
