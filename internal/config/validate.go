package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/project-prism/internal/lsp"
)

var (
	// ErrInvalidConcurrency indicates a non-positive concurrency setting
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidTimeout indicates a non-positive timeout setting
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidFormat indicates an unsupported output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrEmptyOutputPath indicates a missing output path
	ErrEmptyOutputPath = errors.New("empty output path")

	// ErrInvalidServer indicates an incomplete server entry
	ErrInvalidServer = errors.New("invalid server entry")
)

// validFormats are the output formats the CLI can write.
var validFormats = map[string]bool{
	"json":     true,
	"markdown": true,
	"sqlite":   true,
}

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateAnalysis(&cfg.Analysis); err != nil {
		errs = append(errs, err)
	}

	if err := validateOutput(&cfg.Output); err != nil {
		errs = append(errs, err)
	}

	if err := validateServers(cfg.Servers); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateAnalysis(cfg *AnalysisConfig) error {
	var errs []error

	if cfg.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConcurrency, cfg.Concurrency))
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: request_timeout_seconds must be positive, got %d", ErrInvalidTimeout, cfg.RequestTimeoutSeconds))
	}

	if cfg.StartupTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: startup_timeout_seconds must be positive, got %d", ErrInvalidTimeout, cfg.StartupTimeoutSeconds))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateOutput(cfg *OutputConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Path) == "" {
		errs = append(errs, fmt.Errorf("%w: output path is required (use \"-\" for stdout)", ErrEmptyOutputPath))
	}

	format := strings.ToLower(cfg.Format)
	if !validFormats[format] {
		errs = append(errs, fmt.Errorf("%w: must be 'json', 'markdown', or 'sqlite', got '%s'", ErrInvalidFormat, cfg.Format))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateServers(servers []lsp.ServerConfig) error {
	var errs []error

	for i, server := range servers {
		switch {
		case strings.TrimSpace(server.Language) == "":
			errs = append(errs, fmt.Errorf("%w: servers[%d] missing language id", ErrInvalidServer, i))
		case strings.TrimSpace(server.Command) == "":
			errs = append(errs, fmt.Errorf("%w: server for %s missing command", ErrInvalidServer, server.Language))
		case len(server.Extensions) == 0:
			errs = append(errs, fmt.Errorf("%w: server for %s has no file extensions", ErrInvalidServer, server.Language))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
