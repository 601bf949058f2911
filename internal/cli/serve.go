package cli

import (
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/durolabs/duro/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory store over MCP stdio",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, cleanup, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer cleanup()

	fmt.Fprintf(os.Stderr, "duro %s serving MCP on stdio\n", server.Version)
	fmt.Fprintf(os.Stderr, "  data: %s\n", cfg.DataDir)

	return mcpserver.ServeStdio(s)
}
