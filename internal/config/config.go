package config

import (
	"time"

	"github.com/mvp-joe/project-prism/internal/lsp"
)

// Config represents the complete prism configuration.
// It can be loaded from .prism/config.yml with environment variable overrides.
type Config struct {
	Paths    PathsConfig        `yaml:"paths" mapstructure:"paths"`
	Analysis AnalysisConfig     `yaml:"analysis" mapstructure:"analysis"`
	Output   OutputConfig       `yaml:"output" mapstructure:"output"`
	Servers  []lsp.ServerConfig `yaml:"servers" mapstructure:"servers"`
}

// PathsConfig defines which files to skip during discovery.
type PathsConfig struct {
	Ignore []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns added to the built-in ignores
}

// AnalysisConfig tunes how the engine drives language servers.
type AnalysisConfig struct {
	Languages             []string `yaml:"languages" mapstructure:"languages"`                             // language ids; empty means detect from files
	Concurrency           int      `yaml:"concurrency" mapstructure:"concurrency"`                         // in-flight requests and file workers per server
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"` // per-request budget
	StartupTimeoutSeconds int      `yaml:"startup_timeout_seconds" mapstructure:"startup_timeout_seconds"` // spawn + handshake budget
}

// RequestTimeout returns the per-request budget as a duration.
func (c AnalysisConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// StartupTimeout returns the spawn-and-handshake budget as a duration.
func (c AnalysisConfig) StartupTimeout() time.Duration {
	return time.Duration(c.StartupTimeoutSeconds) * time.Second
}

// OutputConfig defines where and how the document is written.
type OutputConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`           // output file, or "-" for stdout
	Format    string `yaml:"format" mapstructure:"format"`       // "json", "markdown", or "sqlite"
	Hierarchy bool   `yaml:"hierarchy" mapstructure:"hierarchy"` // include resolved ancestor chains
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Ignore: []string{},
		},
		Analysis: AnalysisConfig{
			Concurrency:           4,
			RequestTimeoutSeconds: 30,
			StartupTimeoutSeconds: 30,
		},
		Output: OutputConfig{
			Path:   ".prism/symbols.json",
			Format: "json",
		},
	}
}

// BuildRegistry returns the server registry for this configuration: the
// built-in servers with the config's entries merged over them by
// language id.
func (c *Config) BuildRegistry() (*lsp.Registry, error) {
	reg := lsp.NewRegistry()
	for _, server := range c.Servers {
		if err := reg.Register(server); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
