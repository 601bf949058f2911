package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/durolabs/duro/internal/server"
)

// Set via -ldflags at build time.
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("duro %s (commit: %s, built: %s)\n", server.Version, Commit, BuildDate)
	},
}
