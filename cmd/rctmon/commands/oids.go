package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/rctmon/internal/cli/output"
	"github.com/marmos91/rctmon/internal/registry"
)

var oidsCmd = &cobra.Command{
	Use:   "oids",
	Short: "List the known object identifiers",
	Args:  cobra.NoArgs,
	RunE:  runOids,
}

func init() {
	rootCmd.AddCommand(oidsCmd)
}

// oidList renders the registry as a table.
type oidList []registry.ObjectInfo

// Headers implements output.TableRenderer.
func (l oidList) Headers() []string {
	return []string{"NAME", "ID", "TYPE", "UNIT", "DESCRIPTION"}
}

// Rows implements output.TableRenderer.
func (l oidList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, oi := range l {
		rows = append(rows, []string{
			oi.Name,
			fmt.Sprintf("0x%08X", oi.ObjectID),
			oi.ResponseDataType.String(),
			oi.Unit,
			oi.Description,
		})
	}
	return rows
}

func runOids(_ *cobra.Command, _ []string) error {
	return output.PrintTable(os.Stdout, oidList(registry.Default().All()))
}
