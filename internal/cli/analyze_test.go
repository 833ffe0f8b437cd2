package cli

// Test Plan for Analyze Command:
// - buildSink selects the sink type matching the configured format
// - buildSink resolves relative output paths against the analyzed directory
// - buildSink swaps the default path's extension when only the format changed
// - buildSink leaves explicitly configured paths untouched
// - buildSink passes stdout through for json and markdown
// - buildSink rejects sqlite output to stdout
// - buildSink rejects unknown formats
// - applyAnalyzeFlags overrides only the flags the user actually set
// - applyAnalyzeFlags runs overridden values through validation

import (
	"path/filepath"
	"testing"

	"github.com/mvp-joe/project-prism/internal/analyzer"
	"github.com/mvp-joe/project-prism/internal/config"
	"github.com/mvp-joe/project-prism/internal/storage"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAnalyzeFlagSet mirrors the analyze command's flag registration so
// tests can exercise the overlay logic without touching the shared command.
func newAnalyzeFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
	fs.StringSliceP("language", "l", nil, "")
	fs.StringP("output", "o", "", "")
	fs.StringP("format", "f", "", "")
	fs.Bool("hierarchy", false, "")
	fs.BoolP("watch", "w", false, "")
	fs.BoolP("quiet", "q", false, "")
	fs.Int("concurrency", 0, "")
	fs.Int("timeout", 0, "")
	return fs
}

func TestBuildSink_FormatSelection(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	cfg := config.Default()
	sink, err := buildSink(cfg, root)
	require.NoError(t, err)
	jsonSink, ok := sink.(analyzer.JSONSink)
	require.True(t, ok, "default format should produce a JSON sink")
	assert.Equal(t, filepath.Join(root, ".prism", "symbols.json"), jsonSink.Path)

	cfg = config.Default()
	cfg.Output.Format = "markdown"
	sink, err = buildSink(cfg, root)
	require.NoError(t, err)
	mdSink, ok := sink.(analyzer.MarkdownSink)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, ".prism", "symbols.md"), mdSink.Path,
		"default path should follow the format's extension")

	cfg = config.Default()
	cfg.Output.Format = "sqlite"
	sink, err = buildSink(cfg, root)
	require.NoError(t, err)
	dbSink, ok := sink.(storage.Sink)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, ".prism", "symbols.db"), dbSink.Path)
}

func TestBuildSink_ExplicitPathUntouched(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	cfg := config.Default()
	cfg.Output.Format = "markdown"
	cfg.Output.Path = "docs/inventory.json"

	sink, err := buildSink(cfg, root)
	require.NoError(t, err)

	mdSink, ok := sink.(analyzer.MarkdownSink)
	require.True(t, ok)
	// A user-chosen name keeps its extension even if it looks odd.
	assert.Equal(t, filepath.Join(root, "docs", "inventory.json"), mdSink.Path)
}

func TestBuildSink_AbsolutePathUntouched(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "symbols.json")

	cfg := config.Default()
	cfg.Output.Path = out

	sink, err := buildSink(cfg, root)
	require.NoError(t, err)

	jsonSink, ok := sink.(analyzer.JSONSink)
	require.True(t, ok)
	assert.Equal(t, out, jsonSink.Path)
}

func TestBuildSink_Stdout(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Output.Path = "-"

	sink, err := buildSink(cfg, t.TempDir())
	require.NoError(t, err)

	jsonSink, ok := sink.(analyzer.JSONSink)
	require.True(t, ok)
	assert.Equal(t, "-", jsonSink.Path)
}

func TestBuildSink_SQLiteRejectsStdout(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Output.Format = "sqlite"
	cfg.Output.Path = "-"

	_, err := buildSink(cfg, t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout")
}

func TestBuildSink_UnknownFormat(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Output.Format = "xml"

	_, err := buildSink(cfg, t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestApplyAnalyzeFlags_OverridesOnlyChanged(t *testing.T) {
	t.Parallel()

	fs := newAnalyzeFlagSet()
	require.NoError(t, fs.Set("language", "go,python"))
	require.NoError(t, fs.Set("format", "markdown"))
	require.NoError(t, fs.Set("concurrency", "8"))

	cfg := config.Default()
	cfg.Analysis.Languages = []string{"typescript"}
	cfg.Output.Path = "custom/path.json"

	require.NoError(t, applyAnalyzeFlags(fs, cfg))

	assert.Equal(t, []string{"go", "python"}, cfg.Analysis.Languages)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.Equal(t, 8, cfg.Analysis.Concurrency)

	// Untouched flags leave config values alone
	assert.Equal(t, "custom/path.json", cfg.Output.Path)
	assert.False(t, cfg.Output.Hierarchy)
	assert.Equal(t, config.Default().Analysis.RequestTimeoutSeconds, cfg.Analysis.RequestTimeoutSeconds)
}

func TestApplyAnalyzeFlags_HierarchyAndTimeout(t *testing.T) {
	t.Parallel()

	fs := newAnalyzeFlagSet()
	require.NoError(t, fs.Set("hierarchy", "true"))
	require.NoError(t, fs.Set("timeout", "120"))
	require.NoError(t, fs.Set("output", "-"))

	cfg := config.Default()

	require.NoError(t, applyAnalyzeFlags(fs, cfg))

	assert.True(t, cfg.Output.Hierarchy)
	assert.Equal(t, 120, cfg.Analysis.RequestTimeoutSeconds)
	assert.Equal(t, "-", cfg.Output.Path)
}

func TestApplyAnalyzeFlags_ValidatesOverrides(t *testing.T) {
	t.Parallel()

	fs := newAnalyzeFlagSet()
	require.NoError(t, fs.Set("format", "yaml"))

	cfg := config.Default()

	err := applyAnalyzeFlags(fs, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidFormat)
}

func TestApplyAnalyzeFlags_NoChangesKeepsConfig(t *testing.T) {
	t.Parallel()

	fs := newAnalyzeFlagSet()

	cfg := config.Default()
	original := *cfg

	require.NoError(t, applyAnalyzeFlags(fs, cfg))

	assert.Equal(t, original.Output, cfg.Output)
	assert.Equal(t, original.Analysis.Concurrency, cfg.Analysis.Concurrency)
}
