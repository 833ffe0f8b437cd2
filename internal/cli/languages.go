package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// languagesCmd represents the languages command
var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and server availability",
	Long: `Languages lists every language prism can analyze, the language server
command it runs, the file extensions it claims, and whether the server
binary is installed on PATH.

Custom servers from .prism/config.yml appear alongside the built-in ones.`,
	RunE: runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := loadConfig(wd)
	if err != nil {
		return err
	}
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	// Print header
	fmt.Printf("%-12s %-38s %-22s %s\n", "Language", "Server", "Extensions", "Status")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, lang := range registry.Languages() {
		sc, ok := registry.Lookup(lang)
		if !ok {
			continue
		}

		command := sc.Command
		if len(sc.Args) > 0 {
			command += " " + strings.Join(sc.Args, " ")
		}

		status := green("✓ installed")
		if _, err := exec.LookPath(sc.Command); err != nil {
			status = red("✗ not found")
		}

		fmt.Printf("%-12s %-38s %-22s %s\n",
			lang,
			truncate(command, 38),
			strings.Join(sc.Extensions, " "),
			status)
	}

	return nil
}

// truncate shortens a string to maxLen characters with ellipsis
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
