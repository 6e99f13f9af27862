package rct

import "fmt"

// InvalidCommandError reports a byte after a start token that is not a
// recognised command, or is EXTENSION (which the parser does not support).
// The frame cannot be parsed; the caller may advance the parse position by
// one byte to resynchronise.
type InvalidCommandError struct {
	// Byte is the offending command byte.
	Byte byte
	// Offset is the index of the byte in the unescaped frame, counted from
	// the start token.
	Offset int
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command byte 0x%02X at offset %d", e.Byte, e.Offset)
}

// CRCMismatchError reports a frame whose transmitted CRC16 does not match
// the checksum computed over the received content. Suppressed into
// ResponseFrame.CRCOk=false when the parser is constructed with
// ignoreCRCMismatch.
type CRCMismatchError struct {
	// Received is the CRC16 value carried by the frame.
	Received uint16
	// Computed is the CRC16 value calculated over the unescaped frame body.
	Computed uint16
	// Offset is the index of the CRC field in the unescaped frame.
	Offset int
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("frame CRC mismatch at offset %d: received 0x%04X, computed 0x%04X",
		e.Offset, e.Received, e.Computed)
}
