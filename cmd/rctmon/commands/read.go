package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/rctmon/internal/client"
	"github.com/marmos91/rctmon/internal/registry"
)

var readCmd = &cobra.Command{
	Use:   "read <oid-name>",
	Short: "Send one READ command and print the response",
	Long: `Send a single READ request for a named object and print the decoded
value.

Examples:
  rctmon read battery.soc --host inverter.local
  rctmon read energy.e_ac_day --host inverter.local`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
}

func runRead(_ *cobra.Command, args []string) error {
	if err := requireHost(); err != nil {
		return err
	}

	reader, err := client.Open(sessionConfig(), registry.Default(), nil)
	if err != nil {
		return err
	}
	defer reader.Close()

	frame, err := reader.ReadFrame(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	if !frame.CRCOk {
		return fmt.Errorf("read %s: response failed checksum verification", args[0])
	}

	oi, err := registry.Default().GetByID(frame.OID)
	if err != nil {
		return err
	}

	value := client.FormatValue(oi, frame.Payload)
	if oi.Unit != "" {
		fmt.Printf("%s: %s %s\n", oi.Name, value, oi.Unit)
	} else {
		fmt.Printf("%s: %s\n", oi.Name, value)
	}
	return nil
}
