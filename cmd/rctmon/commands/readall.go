package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/rctmon/internal/cli/output"
	"github.com/marmos91/rctmon/internal/client"
	"github.com/marmos91/rctmon/internal/logger"
	"github.com/marmos91/rctmon/internal/registry"
)

const readAllRetries = 3

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Read every known object from the inverter",
	Long: `Iterate the object registry and read each value with bounded retries.
Objects that keep timing out are listed without a value.`,
	Args: cobra.NoArgs,
	RunE: runReadAll,
}

func init() {
	rootCmd.AddCommand(readAllCmd)
}

func runReadAll(_ *cobra.Command, _ []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	// Checksum failures should not abort a bulk dump.
	sessionCfg := sessionConfig()
	sessionCfg.IgnoreCRC = true

	reader, err := client.Open(sessionCfg, registry.Default(), nil)
	if err != nil {
		return err
	}
	defer reader.Close()

	all := registry.Default().All()
	logger.Info("Reading all objects", "count", len(all))

	table := output.NewTableData("NAME", "VALUE", "UNIT")
	for _, oi := range all {
		value, err := readWithRetries(reader, oi.Name)
		if err != nil {
			logger.Error("Giving up on object", logger.KeyOidName, oi.Name, "error", err)
			value = "-"
		}
		table.AddRow(oi.Name, value, oi.Unit)

		if reader.ServerClosed() {
			return fmt.Errorf("inverter closed the connection after %s", oi.Name)
		}
	}

	return output.PrintTable(os.Stdout, table)
}

// readWithRetries reads one object, retrying timeouts with a linear backoff.
func readWithRetries(reader *client.Reader, name string) (string, error) {
	var lastErr error
	for retry := 0; retry < readAllRetries; retry++ {
		frame, err := reader.ReadFrame(name)
		if err == nil {
			oi, err := registry.Default().GetByID(frame.OID)
			if err != nil {
				return "", err
			}
			return client.FormatValue(oi, frame.Payload), nil
		}
		lastErr = err
		if !errors.Is(err, client.ErrTimeout) {
			return "", err
		}
		logger.Warn("Timeout, retrying",
			logger.KeyOidName, name,
			logger.KeyRetry, retry+1)
		time.Sleep(time.Duration(retry+1) * time.Second)
	}
	return "", lastErr
}
