package rct

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeReadFrame(t *testing.T) {
	// READ request for battery.soc, a fixed vector of the protocol.
	frame, err := MakeReadFrame(0x959930BF)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x2B, 0x01, 0x04, 0x95, 0x99, 0x30, 0xBF, 0x0D, 0x65}, frame)
}

func TestMakeFrameEscaping(t *testing.T) {
	// The OID starts with the start token, which must be stuffed on the
	// wire; the CRC (0xB195) needs no escaping.
	payload := []byte{0x00, 0x00, 0x03, 0x15}
	frame, err := MakeFrame(CmdResponse, 0x2B000102, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x2B,
		0x05, 0x08,
		0x2D, 0x2B, 0x00, 0x01, 0x02,
		0x00, 0x00, 0x03, 0x15,
		0xB1, 0x95,
	}, frame)
}

func TestMakeFramePlantCarriesAddress(t *testing.T) {
	frame, err := MakeFrame(CmdPlantResponse, 0x11223344, []byte{0x01}, 4711)
	require.NoError(t, err)

	// Unescape and check the layout: cmd, len, address, oid, payload.
	var unescaped []byte
	for i := 1; i < len(frame); i++ {
		if frame[i] == EscapeToken && i+1 < len(frame) &&
			(frame[i+1] == StartToken || frame[i+1] == EscapeToken) {
			continue
		}
		unescaped = append(unescaped, frame[i])
	}
	require.GreaterOrEqual(t, len(unescaped), 11)
	assert.Equal(t, byte(CmdPlantResponse), unescaped[0])
	assert.Equal(t, byte(9), unescaped[1]) // address + oid + 1 payload byte
	assert.Equal(t, []byte{0x00, 0x00, 0x12, 0x67}, unescaped[2:6])
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, unescaped[6:10])
}

func TestMakeFrameLongLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0x41}, 300)
	frame, err := MakeFrame(CmdLongResponse, 0x01020304, payload, 0)
	require.NoError(t, err)

	// Long commands use a 2-byte length field: payload + oid.
	assert.Equal(t, byte(CmdLongResponse), frame[1])
	assert.Equal(t, byte(0x01), frame[2])
	assert.Equal(t, byte(0x30), frame[3]) // 304 = 0x0130
}

func TestMakeFrameErrors(t *testing.T) {
	t.Run("ShortCommandOverflow", func(t *testing.T) {
		_, err := MakeFrame(CmdResponse, 1, bytes.Repeat([]byte{0}, 300), 0)
		assert.Error(t, err)
	})

	t.Run("ExtensionRejected", func(t *testing.T) {
		_, err := MakeFrame(CmdExtension, 1, nil, 0)
		var invalid *InvalidCommandError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("UndefinedCommandRejected", func(t *testing.T) {
		_, err := MakeFrame(Command(0x7F), 1, nil, 0)
		assert.Error(t, err)
	})
}

func TestCommandClassification(t *testing.T) {
	assert.True(t, CmdPlantLongResponse.IsPlant())
	assert.True(t, CmdPlantLongResponse.IsLong())
	assert.True(t, CmdPlantLongResponse.IsResponse())
	assert.Equal(t, FrameTypePlant, CmdPlantResponse.Type())

	assert.False(t, CmdResponse.IsPlant())
	assert.False(t, CmdResponse.IsLong())
	assert.Equal(t, FrameTypeStandard, CmdLongResponse.Type())

	assert.False(t, Command(0x7F).Valid())
	assert.Equal(t, "RESPONSE", CmdResponse.String())
}
