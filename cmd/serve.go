package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/liveexport/internal/mcpserver"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Expose the session queries and export operations as MCP tools over
stdio, so an MCP client (an AI assistant, typically) can inspect the open
set and drive exports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := mcpserver.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to start MCP server: %w", err)
		}
		defer srv.Close()

		slog.Info("MCP server listening on stdio")
		return srv.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
