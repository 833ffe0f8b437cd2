package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mvp-joe/project-prism/internal/analyzer"
	"github.com/mvp-joe/project-prism/internal/config"
	"github.com/mvp-joe/project-prism/internal/storage"
	"github.com/mvp-joe/project-prism/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	analyzeLanguages   []string
	analyzeOutput      string
	analyzeFormat      string
	analyzeHierarchy   bool
	analyzeWatch       bool
	analyzeQuiet       bool
	analyzeConcurrency int
	analyzeTimeout     int
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [directory]",
	Short: "Extract the symbol inventory of a codebase",
	Long: `Analyze discovers source files under a directory, starts the configured
language server for each detected language, and extracts every file's
symbol tree into a single normalized document.

With no directory argument the current directory is analyzed. Output
defaults to .prism/symbols.json inside the analyzed directory.

Examples:
  # Analyze the current directory
  prism analyze

  # Analyze a specific project, TypeScript and Go only
  prism analyze ~/src/app --language typescript --language go

  # Markdown to stdout
  prism analyze --format markdown --output -

  # Persist to SQLite and include the type hierarchy
  prism analyze --format sqlite --hierarchy

  # Keep re-analyzing as files change
  prism analyze --watch
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringSliceVarP(&analyzeLanguages, "language", "l", nil, "Languages to analyze (repeatable; default: all detected)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Output path, or - for stdout")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "", "Output format: json, markdown or sqlite")
	analyzeCmd.Flags().BoolVar(&analyzeHierarchy, "hierarchy", false, "Resolve full ancestor chains for named types")
	analyzeCmd.Flags().BoolVarP(&analyzeWatch, "watch", "w", false, "Re-run analysis when source files change")
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "Suppress progress output")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "Concurrent requests per language server")
	analyzeCmd.Flags().IntVar(&analyzeTimeout, "timeout", 0, "Per-request timeout in seconds")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted! Cancelling analysis...")
		cancel()
	}()

	rootDir := "."
	if len(args) > 0 {
		rootDir = args[0]
	}
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	info, err := os.Stat(rootDir)
	if err != nil {
		return fmt.Errorf("cannot analyze %s: %w", rootDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot analyze %s: not a directory", rootDir)
	}

	cfg, err := loadConfig(rootDir)
	if err != nil {
		return err
	}
	if err := applyAnalyzeFlags(cmd.Flags(), cfg); err != nil {
		return err
	}

	acfg, err := cfg.ToAnalyzerConfig(rootDir)
	if err != nil {
		return err
	}
	acfg.Logger = slog.Default()
	// Progress chatter on stdout would corrupt a document written there.
	quiet := analyzeQuiet || cfg.Output.Path == "-"
	acfg.Progress = NewCLIProgressReporter(quiet)

	sink, err := buildSink(cfg, rootDir)
	if err != nil {
		return err
	}

	runOnce := func(ctx context.Context) error {
		run, err := analyzer.New(acfg)
		if err != nil {
			return err
		}
		doc, err := run.Run(ctx)
		if err != nil {
			return err
		}
		if err := sink.Write(doc); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if !analyzeWatch {
		return runOnce(ctx)
	}
	return watchLoop(ctx, rootDir, acfg, runOnce)
}

// applyAnalyzeFlags overlays command-line flags onto the loaded
// configuration. Only flags the user actually set participate, so config
// file and environment values survive unless explicitly overridden.
func applyAnalyzeFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("language") {
		cfg.Analysis.Languages, _ = flags.GetStringSlice("language")
	}
	if flags.Changed("output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("hierarchy") {
		cfg.Output.Hierarchy, _ = flags.GetBool("hierarchy")
	}
	if flags.Changed("concurrency") {
		cfg.Analysis.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("timeout") {
		cfg.Analysis.RequestTimeoutSeconds, _ = flags.GetInt("timeout")
	}
	// Flag values go through the same validation as file and env values.
	return config.Validate(cfg)
}

// buildSink selects the output sink for the configured format. Relative
// paths resolve against the analyzed directory. When the format was
// changed but the path still carries the default name, the extension
// follows the format.
func buildSink(cfg *config.Config, rootDir string) (analyzer.Sink, error) {
	format := cfg.Output.Format
	path := cfg.Output.Path

	if path == config.Default().Output.Path {
		switch format {
		case "markdown":
			path = ".prism/symbols.md"
		case "sqlite":
			path = ".prism/symbols.db"
		}
	}
	if path != "-" && !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}

	switch format {
	case "json":
		return analyzer.JSONSink{Path: path}, nil
	case "markdown":
		return analyzer.MarkdownSink{Path: path}, nil
	case "sqlite":
		if path == "-" {
			return nil, fmt.Errorf("sqlite output cannot be written to stdout")
		}
		return storage.Sink{Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %q", format)
	}
}

// watchLoop re-runs the analysis whenever watched files change. The
// watcher is paused during a run so mid-run events accumulate instead of
// triggering overlapping analyses.
func watchLoop(ctx context.Context, rootDir string, acfg analyzer.Config, runOnce func(context.Context) error) error {
	// The first run validates the setup; watch mode does not start on a
	// broken configuration.
	if err := runOnce(ctx); err != nil {
		return err
	}

	extensions := acfg.Registry.ExtensionsFor(acfg.Languages)
	w, err := watcher.NewFileWatcher(rootDir, extensions, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	// Every re-run rescans the whole tree, so coalescing queued change
	// batches drops no information.
	changes := make(chan []string, 1)
	if err := w.Start(ctx, func(files []string) {
		select {
		case changes <- files:
		default:
		}
	}); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	if !analyzeQuiet {
		fmt.Println("Watching for changes (Ctrl-C to stop)...")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case files := <-changes:
			if !analyzeQuiet {
				fmt.Printf("\n%d file(s) changed, re-analyzing...\n", len(files))
			}
			w.Pause()
			if err := runOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Watch mode survives a failed run; the next change
				// triggers a fresh attempt.
				fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
			}
			w.Resume()
		}
	}
}
