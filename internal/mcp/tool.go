package mcp

// Implementation Plan:
// 1. AddAnalyzeTool - composable tool registration function
// 2. createAnalyzeHandler - handler factory that captures the runner
// 3. Bind AnalyzeRequest from MCP arguments (mcputils coercion)
// 4. Run the analysis through the AnalysisRunner
// 5. Return the document as JSON text (mcp-go convention)

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/project-prism/internal/analyzer"
	"github.com/mvp-joe/project-prism/internal/config"
	mcputils "github.com/mvp-joe/project-prism/internal/mcp-utils"
	"github.com/mvp-joe/project-prism/internal/symbols"
)

// AnalyzeRequest carries the parsed prism_analyze arguments.
type AnalyzeRequest struct {
	Directory string   `json:"directory"`
	Languages []string `json:"languages,omitempty"`
	Hierarchy *bool    `json:"hierarchy,omitempty"` // nil means use the configured default
}

// AnalysisRunner runs one analysis over a directory. The engine-backed
// implementation spawns real language servers; tests substitute a stub.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context, req AnalyzeRequest) (*symbols.Document, error)
}

// engineRunner drives the real analysis engine with settings from the
// loaded configuration.
type engineRunner struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (r *engineRunner) RunAnalysis(ctx context.Context, req AnalyzeRequest) (*symbols.Document, error) {
	rootDir, err := filepath.Abs(req.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}

	acfg, err := r.cfg.ToAnalyzerConfig(rootDir)
	if err != nil {
		return nil, err
	}
	if len(req.Languages) > 0 {
		acfg.Languages = req.Languages
	}
	if req.Hierarchy != nil {
		acfg.IncludeHierarchy = *req.Hierarchy
	}
	acfg.Logger = r.logger

	run, err := analyzer.New(acfg)
	if err != nil {
		return nil, err
	}
	return run.Run(ctx)
}

// AddAnalyzeTool registers the prism_analyze tool with an MCP server.
// This function is composable - it can be combined with other tool
// registrations.
func AddAnalyzeTool(s *server.MCPServer, runner AnalysisRunner) {
	tool := mcp.NewTool(
		"prism_analyze",
		mcp.WithDescription("Run language-server-backed symbol analysis over a directory and return the normalized symbol inventory as JSON. The inventory holds per-file symbol trees enriched with documentation, type parameters, declared supertypes, and cross-file definition links."),
		mcp.WithString("directory",
			mcp.Required(),
			mcp.Description("Directory to analyze. Absolute, or relative to the server's working directory.")),
		mcp.WithArray("languages",
			mcp.Description("Restrict analysis to these language identifiers (e.g. ['go', 'typescript']). Leave empty to analyze every configured language with matching files.")),
		mcp.WithBoolean("hierarchy",
			mcp.Description("Include the resolved type hierarchy summary in the document. Defaults to the configured output.hierarchy setting.")),
	)

	s.AddTool(tool, createAnalyzeHandler(runner))
}

// createAnalyzeHandler creates the handler function for the prism_analyze tool.
func createAnalyzeHandler(runner AnalysisRunner) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, ok := request.Params.Arguments.(map[string]interface{}); !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		var req AnalyzeRequest
		if err := mcputils.BindArguments(request, &req); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if req.Directory == "" {
			return mcp.NewToolResultError("directory parameter is required"), nil
		}

		doc, err := runner.RunAnalysis(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("analysis failed: %w", err)
		}

		jsonData, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document: %w", err)
		}

		// Return as text result (mcp-go convention)
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}
