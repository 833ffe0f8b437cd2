package cli

import (
	"log/slog"
	"os"

	"github.com/mvp-joe/project-prism/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	verboseFlag bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Code symbol extraction via language servers",
	Long: `Prism drives language servers over LSP to extract a normalized
symbol inventory from a codebase: functions, types, methods, fields and
their relationships, written to a single structured document.

Point it at a project root and it discovers source files, starts the
configured language server for each detected language, and walks every
file's symbol tree:

  # Analyze the current directory
  prism analyze

  # TypeScript only, markdown to stdout
  prism analyze --language typescript --format markdown --output -

  # Re-run automatically when files change
  prism analyze --watch

Configuration lives in .prism/config.yml; every setting can also be
overridden with PRISM_* environment variables or command-line flags.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .prism/config.yml in the analyzed directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
}

// initLogging configures the process-wide logger. Analysis progress goes to
// stdout (or the progress bar); the slog default is reserved for warnings
// and debug detail, so it writes to stderr and stays quiet unless asked.
func initLogging() {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadConfig loads configuration for the given root directory, honoring the
// persistent --config flag when set.
func loadConfig(rootDir string) (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadConfigFromFile(cfgFile)
	}
	return config.LoadConfigFromDir(rootDir)
}
