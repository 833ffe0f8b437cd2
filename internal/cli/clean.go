package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	cleanQuietFlag bool
	cleanAllFlag   bool
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean [directory]",
	Short: "Remove generated output documents",
	Long: `Clean removes the documents prism generated under .prism/ (symbols.json,
symbols.md, symbols.db and any SQLite sidecar files). The configuration
file (.prism/config.yml) is preserved.

Use --all to remove the entire .prism directory, configuration included.

Examples:
  # Remove generated outputs in the current project
  prism clean

  # Remove everything including configuration
  prism clean --all

  # Clean with minimal output
  prism clean --quiet
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
	cleanCmd.Flags().BoolVarP(&cleanAllFlag, "all", "a", false, "Remove the entire .prism directory including configuration")
}

func runClean(cmd *cobra.Command, args []string) error {
	rootDir := "."
	if len(args) > 0 {
		rootDir = args[0]
	}
	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	return executeClean(rootDir, cleanQuietFlag, cleanAllFlag)
}

func executeClean(rootDir string, quiet, all bool) error {
	prismDir := filepath.Join(rootDir, ".prism")
	if _, err := os.Stat(prismDir); os.IsNotExist(err) {
		if !quiet {
			fmt.Println("Nothing to clean")
		}
		return nil
	}

	// Handle --all flag: remove the whole directory
	if all {
		sizeMB := dirSizeMB(prismDir)
		if err := os.RemoveAll(prismDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", prismDir, err)
		}
		if !quiet {
			if sizeMB > 0 {
				fmt.Printf("✓ Removed .prism directory (~%.1f MB)\n", sizeMB)
			} else {
				fmt.Println("✓ Removed .prism directory")
			}
		}
		return nil
	}

	// Default: everything under .prism except the configuration goes
	entries, err := os.ReadDir(prismDir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", prismDir, err)
	}

	removed := 0
	var sizeMB float64
	for _, entry := range entries {
		if entry.Name() == "config.yml" || entry.Name() == "config.yaml" {
			continue
		}
		path := filepath.Join(prismDir, entry.Name())
		sizeMB += dirSizeMB(path)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
	}

	if !quiet {
		switch {
		case removed == 0:
			fmt.Println("Nothing to clean")
		case sizeMB > 0:
			fmt.Printf("✓ Removed %d generated file(s) (~%.1f MB)\n", removed, sizeMB)
		default:
			fmt.Printf("✓ Removed %d generated file(s)\n", removed)
		}
	}

	return nil
}

// dirSizeMB returns the total size of a file or directory tree in
// megabytes. Errors count as zero; size reporting is best effort.
func dirSizeMB(path string) float64 {
	var total int64
	filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return float64(total) / (1024 * 1024)
}
