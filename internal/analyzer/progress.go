package analyzer

import "time"

// ProgressReporter receives callbacks as a run advances. Implementations
// can draw progress bars, log, or stay silent.
type ProgressReporter interface {
	// OnDiscoveryStart is called when file discovery begins.
	OnDiscoveryStart()

	// OnDiscoveryComplete is called with the discovered file count and
	// the languages that will be analyzed.
	OnDiscoveryComplete(files int, languages []string)

	// OnSessionStarting is called before a language server is spawned.
	OnSessionStarting(language string)

	// OnExtractionStart is called before a language's files are
	// processed.
	OnExtractionStart(language string, totalFiles int)

	// OnFileProcessed is called after each file, successful or not.
	OnFileProcessed(file string)

	// OnComplete is called when the run finishes successfully.
	OnComplete(stats *Stats)
}

// Stats summarizes one finished run.
type Stats struct {
	Files    int
	Symbols  int
	Warnings int
	Duration time.Duration
}

// NoOpProgressReporter discards all progress events. Used for --quiet
// and in tests.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnDiscoveryStart()                                 {}
func (NoOpProgressReporter) OnDiscoveryComplete(files int, languages []string) {}
func (NoOpProgressReporter) OnSessionStarting(language string)                 {}
func (NoOpProgressReporter) OnExtractionStart(language string, totalFiles int) {}
func (NoOpProgressReporter) OnFileProcessed(file string)                       {}
func (NoOpProgressReporter) OnComplete(stats *Stats)                           {}
