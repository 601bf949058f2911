// Package cli defines the duro command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/durolabs/duro/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "duro",
	Short: "Persistent, provenance-aware memory for AI agents",
	Long: `Duro stores what an agent learns as typed artifacts — facts, decisions,
episodes, incidents, and changes — with confidence decay, supersession
chains, and a tamper-evident audit log. It serves the memory over MCP
and ships maintenance commands for operating the store directly.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.duro/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig resolves the --config flag, falling back to the default path.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Default(), err
		}
	}
	return config.Load(path)
}
