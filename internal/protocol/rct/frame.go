package rct

import (
	"encoding/binary"
	"fmt"
)

// ResponseFrame is the product of a successful parse. All fields hold
// unescaped values; Payload is the raw value field, decoding is up to the
// caller. Frames are immutable once emitted.
type ResponseFrame struct {
	// Command is the frame's command byte: any defined command except
	// EXTENSION, usually one of the four response commands.
	Command Command
	// Type is derived from Command: STANDARD or PLANT.
	Type FrameType
	// OID is the 32-bit object identifier the frame answers for.
	OID uint32
	// Address is the plant address; zero for standard frames.
	Address uint32
	// Payload is the unescaped value field.
	Payload []byte
	// CRC16 is the checksum as computed over the received frame body.
	CRC16 uint16
	// CRCOk reports whether CRC16 matched the checksum computed over the
	// received content. Only ever false when the parser ignores mismatches.
	CRCOk bool
	// FrameLength is the total unescaped length from the byte after the
	// start token through the CRC inclusive.
	FrameLength int
}

// maxShortDataLength is the largest value the 1-byte length field can carry.
const maxShortDataLength = 0xFF

// escapeInto appends b to dst, prefixing an escape token when b is a literal
// start or escape token.
func escapeInto(dst []byte, b ...byte) []byte {
	for _, c := range b {
		if c == StartToken || c == EscapeToken {
			dst = append(dst, EscapeToken)
		}
		dst = append(dst, c)
	}
	return dst
}

// MakeFrame builds a complete wire frame: start token, command, length
// field (1 byte, or 2 bytes for long commands), plant address for plant
// commands, OID, payload and CRC16, with escape stuffing applied to every
// byte after the start token. The CRC is computed over the unescaped bytes
// from the command through the last payload byte.
func MakeFrame(cmd Command, oid uint32, payload []byte, address uint32) ([]byte, error) {
	if !cmd.Valid() || cmd == CmdExtension {
		return nil, &InvalidCommandError{Byte: byte(cmd), Offset: 0}
	}

	dataLen := len(payload) + 4
	if cmd.IsPlant() {
		dataLen += 4
	}
	if !cmd.IsLong() && dataLen > maxShortDataLength {
		return nil, fmt.Errorf("make frame: %d data bytes exceed the short length field, use a long command", dataLen)
	}

	// Unescaped frame body: everything after the start token, before the CRC.
	body := make([]byte, 0, 2+dataLen)
	body = append(body, byte(cmd))
	if cmd.IsLong() {
		body = binary.BigEndian.AppendUint16(body, uint16(dataLen))
	} else {
		body = append(body, byte(dataLen))
	}
	if cmd.IsPlant() {
		body = binary.BigEndian.AppendUint32(body, address)
	}
	body = binary.BigEndian.AppendUint32(body, oid)
	body = append(body, payload...)

	crc := CRC16(body)

	wire := make([]byte, 0, len(body)+8)
	wire = append(wire, StartToken)
	wire = escapeInto(wire, body...)
	wire = escapeInto(wire, byte(crc>>8), byte(crc))
	return wire, nil
}

// MakeReadFrame builds the READ request frame for a single OID:
//
//	START(0x2B) | READ(0x01) | LEN(0x04) | OID(4 BE) | CRC16(2 BE)
func MakeReadFrame(oid uint32) ([]byte, error) {
	return MakeFrame(CmdRead, oid, nil, 0)
}
