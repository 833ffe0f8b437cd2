package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/project-prism/internal/lsp"
	"github.com/mvp-joe/project-prism/internal/symbols"
)

// Config describes one analysis run.
type Config struct {
	// RootDir is the directory to analyze. Made absolute by New.
	RootDir string

	// Languages limits the run to specific language ids. Empty means
	// every language the registry recognizes among the discovered files.
	Languages []string

	// Registry supplies server commands and extension mappings. Nil
	// means the built-in registry.
	Registry *lsp.Registry

	// IgnorePatterns extend the default ignore globs.
	IgnorePatterns []string

	// Concurrency caps in-flight requests per session and file workers
	// per language. Zero means 4.
	Concurrency int

	// RequestTimeout bounds each server request. Zero means 30s.
	RequestTimeout time.Duration

	// StartupTimeout bounds the spawn-and-handshake phase. Zero means
	// 30s.
	StartupTimeout time.Duration

	// IncludeHierarchy adds resolved ancestor chains to the document.
	IncludeHierarchy bool

	Progress ProgressReporter
	Logger   *slog.Logger
}

// AnalysisRun drives one invocation: discover files, run one session per
// language, extract and normalize every file, and fold the results into
// a single document. The run owns every session it creates and shuts
// them down on completion, failure, and cancellation alike.
type AnalysisRun struct {
	cfg      Config
	registry *lsp.Registry
	progress ProgressReporter
	logger   *slog.Logger
	runID    string

	warnMu   sync.Mutex
	warnings []symbols.Warning
}

// New validates the configuration and prepares a run.
func New(cfg Config) (*AnalysisRun, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("analysis root directory is required")
	}
	absRoot, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving root directory: %w", err)
	}
	cfg.RootDir = absRoot

	if cfg.Registry == nil {
		cfg.Registry = lsp.NewRegistry()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}
	if cfg.Progress == nil {
		cfg.Progress = NoOpProgressReporter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	for _, lang := range cfg.Languages {
		if _, ok := cfg.Registry.Lookup(lang); !ok {
			return nil, fmt.Errorf("unknown language %q (known: %s)", lang, strings.Join(cfg.Registry.Languages(), ", "))
		}
	}

	runID := uuid.NewString()
	return &AnalysisRun{
		cfg:      cfg,
		registry: cfg.Registry,
		progress: cfg.Progress,
		logger:   cfg.Logger.With("run_id", runID),
		runID:    runID,
	}, nil
}

// fileRef ties a discovered file to its position in the global discovery
// order, which the final document preserves.
type fileRef struct {
	path  string
	index int
}

// Run executes the analysis and returns the finished document. File
// -level failures become document warnings; spawn- and session-level
// failures abort the run.
func (r *AnalysisRun) Run(ctx context.Context) (*symbols.Document, error) {
	start := time.Now()
	r.progress.OnDiscoveryStart()

	files, byLanguage, err := r.discover()
	if err != nil {
		return nil, err
	}

	languages := make([]string, 0, len(byLanguage))
	for lang := range byLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	r.progress.OnDiscoveryComplete(len(files), languages)
	r.logger.Info("discovery complete", "files", len(files), "languages", languages)

	source, err := newSourceReader(r.cfg.RootDir)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	results := make([][]*symbols.Symbol, len(files))
	for _, lang := range languages {
		if err := r.analyzeLanguage(ctx, lang, byLanguage[lang], source, results); err != nil {
			return nil, err
		}
	}

	doc := r.assemble(files, results, languages)
	if r.cfg.IncludeHierarchy {
		doc.Hierarchy = BuildHierarchy(doc)
	}

	r.progress.OnComplete(&Stats{
		Files:    len(files),
		Symbols:  doc.Count(),
		Warnings: len(doc.Warnings),
		Duration: time.Since(start),
	})
	return doc, nil
}

// discover walks the tree once and groups the matching files by
// language. Explicitly requested languages stay in the run even when no
// file matches them.
func (r *AnalysisRun) discover() ([]string, map[string][]fileRef, error) {
	fd, err := NewFileDiscovery(r.cfg.RootDir, r.registry.ExtensionsFor(r.cfg.Languages), r.cfg.IgnorePatterns)
	if err != nil {
		return nil, nil, err
	}
	files, err := fd.Discover()
	if err != nil {
		return nil, nil, err
	}

	requested := make(map[string]bool, len(r.cfg.Languages))
	for _, lang := range r.cfg.Languages {
		requested[lang] = true
	}

	byLanguage := make(map[string][]fileRef)
	for _, lang := range r.cfg.Languages {
		byLanguage[lang] = nil
	}
	kept := files[:0]
	for _, path := range files {
		lang, ok := r.registry.LanguageForFile(path)
		if !ok || (len(requested) > 0 && !requested[lang]) {
			continue
		}
		byLanguage[lang] = append(byLanguage[lang], fileRef{path: path, index: len(kept)})
		kept = append(kept, path)
	}
	return kept, byLanguage, nil
}

// analyzeLanguage runs one language's portion: spawn the session,
// extract every file concurrently up to the worker limit, and always
// shut the session down before returning.
func (r *AnalysisRun) analyzeLanguage(ctx context.Context, language string, files []fileRef, source *sourceReader, results [][]*symbols.Symbol) error {
	if len(files) == 0 {
		r.logger.Debug("no files for language, skipping server", "language", language)
		return nil
	}
	serverCfg, ok := r.registry.Lookup(language)
	if !ok {
		return fmt.Errorf("no server registered for language %q", language)
	}

	r.progress.OnSessionStarting(language)
	session, err := lsp.StartSession(ctx, serverCfg, r.cfg.RootDir, lsp.SessionOptions{
		StartupTimeout: r.cfg.StartupTimeout,
		Logger:         r.logger,
	})
	if err != nil {
		return err
	}
	defer session.Shutdown()

	dispatcher := lsp.NewDispatcher(session, lsp.DispatcherConfig{
		MaxInFlight:    int64(r.cfg.Concurrency),
		RequestTimeout: r.cfg.RequestTimeout,
	}, r.logger)

	ext, err := newExtractor(dispatcher, serverCfg, source, r.cfg.RootDir, r.logger)
	if err != nil {
		return err
	}
	defer ext.Close()

	r.progress.OnExtractionStart(language, len(files))
	norm := normalizer{rules: rulesFor(language)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, ref := range files {
		ref := ref
		g.Go(func() error {
			defer r.progress.OnFileProcessed(ref.path)

			syms, err := ext.ExtractFile(gctx, ref.path)
			if err != nil {
				if isFatal(err) {
					return err
				}
				r.warn(ref.path, err)
				return nil
			}
			results[ref.index] = norm.Normalize(syms)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("analyzing %s: %w", language, err)
	}
	return nil
}

// warn records a file-level failure for the document's warning list.
func (r *AnalysisRun) warn(path string, err error) {
	r.logger.Warn("file extraction failed", "file", path, "error", err)
	r.warnMu.Lock()
	defer r.warnMu.Unlock()
	r.warnings = append(r.warnings, symbols.Warning{File: path, Message: err.Error()})
}

// assemble folds the per-file trees into one document, preserving
// discovery order between files and source order within each file.
func (r *AnalysisRun) assemble(files []string, results [][]*symbols.Symbol, languages []string) *symbols.Document {
	language := strings.Join(languages, ",")
	if len(r.cfg.Languages) > 0 {
		ordered := append([]string(nil), r.cfg.Languages...)
		sort.Strings(ordered)
		language = strings.Join(ordered, ",")
	}

	doc := &symbols.Document{
		Language:  language,
		Directory: r.cfg.RootDir,
		Symbols:   []*symbols.Symbol{},
		RunID:     r.runID,
	}
	for i := range files {
		doc.Symbols = append(doc.Symbols, results[i]...)
	}

	r.warnMu.Lock()
	doc.Warnings = append([]symbols.Warning(nil), r.warnings...)
	r.warnMu.Unlock()
	sort.Slice(doc.Warnings, func(i, j int) bool {
		if doc.Warnings[i].File != doc.Warnings[j].File {
			return doc.Warnings[i].File < doc.Warnings[j].File
		}
		return doc.Warnings[i].Message < doc.Warnings[j].Message
	})
	return doc
}
