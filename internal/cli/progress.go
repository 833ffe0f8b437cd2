package cli

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mvp-joe/project-prism/internal/analyzer"
	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet          bool
	bar            *progressbar.ProgressBar
	totalFiles     int
	processedFiles int
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet: quiet,
	}
}

func (c *CLIProgressReporter) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	log.Println("Discovering files...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int, languages []string) {
	if c.quiet {
		return
	}
	if len(languages) > 0 {
		log.Printf("Found %d files (%s)\n", files, strings.Join(languages, ", "))
	} else {
		log.Printf("Found %d files\n", files)
	}
	fmt.Println()
}

func (c *CLIProgressReporter) OnSessionStarting(language string) {
	if c.quiet {
		return
	}
	log.Printf("Starting %s language server...\n", language)
}

func (c *CLIProgressReporter) OnExtractionStart(language string, totalFiles int) {
	if c.quiet {
		return
	}
	// Finish any existing progress bar
	if c.bar != nil {
		c.bar.Finish()
	}
	c.totalFiles = totalFiles
	c.processedFiles = 0

	c.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription(fmt.Sprintf("Extracting %s", language)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(fileName string) {
	if c.quiet {
		return
	}
	if c.bar != nil {
		c.processedFiles++
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) OnComplete(stats *analyzer.Stats) {
	if c.quiet {
		return
	}
	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
	}

	fmt.Println()
	fmt.Printf("✓ Analysis complete: %s symbols from %s files in %.1fs\n",
		formatNumber(stats.Symbols), formatNumber(stats.Files), stats.Duration.Seconds())
	if stats.Warnings > 0 {
		fmt.Printf("  Warnings: %d (recorded in the output document)\n", stats.Warnings)
	}
}

// formatNumber formats integer with thousand separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
