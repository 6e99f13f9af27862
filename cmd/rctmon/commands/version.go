package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	// The root PersistentPreRunE loads config and logging, which version
	// output does not need.
	PersistentPreRun: func(*cobra.Command, []string) {},
	Run: func(*cobra.Command, []string) {
		fmt.Printf("rctmon %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
