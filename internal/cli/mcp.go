package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mvp-joe/project-prism/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for on-demand symbol analysis",
	Long: `Start the Model Context Protocol (MCP) server that lets LLM-powered coding
assistants request the symbol inventory of a codebase.

The MCP server:
- Exposes the prism_analyze tool
- Runs the same analysis pipeline as 'prism analyze'
- Communicates via stdio (standard MCP transport)

Example:
  prism mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Get current working directory (project root)
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Load configuration from .prism/config.yml
	cfg, err := loadConfig(wd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Stdout carries the protocol; anything human-facing goes to stderr.
	fmt.Fprintf(os.Stderr, "Prism MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project: %s\n", wd)
	fmt.Fprintf(os.Stderr, "\n")

	server := mcp.NewServer(cfg, slog.Default())

	// Serve (blocks until shutdown)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
