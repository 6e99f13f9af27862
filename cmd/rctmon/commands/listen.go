package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/rctmon/internal/client"
	"github.com/marmos91/rctmon/internal/logger"
	"github.com/marmos91/rctmon/internal/protocol/rct"
	"github.com/marmos91/rctmon/internal/registry"
)

// listenTimeout replaces the short request/response timeout: broadcast
// traffic arrives in bursts spread over a 30 second cycle.
const listenTimeout = 30 * time.Second

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Receive and log frames without sending commands",
	Long: `Connect to the inverter and log every frame it sends on its own. The
device broadcasts a set of readings spread over a 30 second cycle; this
command watches that traffic without polling.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, _ []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionCfg := sessionConfig()
	sessionCfg.Timeout = listenTimeout

	reader, err := client.Open(sessionCfg, registry.Default(), nil)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.RegisterCallback(reportFrame)
	fmt.Println("Listening to inverter, press Ctrl-C to stop")

	for ctx.Err() == nil {
		if _, err := reader.RecvFrames(0); err != nil {
			switch {
			case errors.Is(err, client.ErrTimeout):
				logger.Warn("Timeout while listening, retrying")
			default:
				logger.Error("Frame receive failed", "error", err)
			}
		}
		if reader.ServerClosed() {
			logger.Info("Inverter closed the connection")
			return nil
		}
	}
	return nil
}

// reportFrame logs one received frame with its decoded value.
func reportFrame(frame *rct.ResponseFrame) {
	oi, err := registry.Default().GetByID(frame.OID)
	if err != nil {
		logger.Warn("Frame with unknown OID",
			logger.KeyOid, fmt.Sprintf("0x%08X", frame.OID),
			logger.KeyCommand, frame.Command.String())
		return
	}

	logger.Info("Frame received",
		logger.KeyOidName, oi.Name,
		logger.KeyValue, client.FormatValue(oi, frame.Payload),
		logger.KeyUnit, oi.Unit,
		logger.KeyCrcOk, frame.CRCOk)
}
