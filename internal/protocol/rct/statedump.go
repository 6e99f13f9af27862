package rct

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/rctmon/internal/logger"
)

// DumpState writes a diagnostic snapshot of the parser and its buffer to a
// timestamped file in the working directory. It is called on unrecoverable
// parse faults (for example an OID the registry does not know) so the raw
// bytes that caused the fault survive for offline analysis. Failures to
// write are logged and swallowed: a diagnostic must never take the session
// down.
func (p *FrameParser) DumpState(message string, buffer []byte) {
	name := time.Now().Format("2006:01:02-15:04:05") + "-parserstate.log"

	f, err := os.Create(name)
	if err != nil {
		logger.Error("Cannot create parser state dump", "file", name, "error", err)
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "fault: %s\n", message)
	fmt.Fprintf(f, "current_pos: %d\n", p.currentPos)
	fmt.Fprintf(f, "complete_frame: %t\n", p.completeFrame)
	fmt.Fprintf(f, "escape_indexes: %v\n", p.escapeIndexes)
	fmt.Fprintf(f, "buffer (%d bytes):\n%s\n", len(buffer), hex.Dump(buffer))

	logger.Warn("Parser state dumped", "file", name, "fault", message)
}
