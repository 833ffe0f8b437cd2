// Package mcp exposes the analysis engine over the Model Context Protocol
// so agent tooling can request symbol inventories without shelling out to
// the CLI.
package mcp

// Implementation Plan:
// 1. Server struct wrapping the mcp-go stdio server
// 2. NewServer - creates server, registers the prism_analyze tool
// 3. Serve - blocks on stdio with graceful shutdown
// 4. Graceful shutdown on SIGTERM/SIGINT

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/project-prism/internal/config"
)

// Server manages the MCP server lifecycle.
type Server struct {
	logger *slog.Logger
	mcp    *server.MCPServer
}

// NewServer creates an MCP server backed by the analysis engine. cfg
// supplies the language registry, timeouts, and ignore patterns for every
// analysis the tool runs.
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		"prism-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	AddAnalyzeTool(mcpServer, &engineRunner{cfg: cfg, logger: logger})

	return &Server{
		logger: logger,
		mcp:    mcpServer,
	}
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server on stdio")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	select {
	case <-sigCh:
		s.logger.Info("received shutdown signal, stopping")
		cancel()
		return nil
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
