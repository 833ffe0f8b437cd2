package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader that reads an explicit config file instead
// of searching rootDir/.prism. Environment variables still take priority.
func NewFileLoader(configFile string) Loader {
	return &loader{
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (PRISM_*)
// 2. Config file (.prism/config.yml or .prism/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	// Configure viper
	v := viper.New()

	// Set up config file search
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		configDir := filepath.Join(l.rootDir, ".prism")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("PRISM")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., PRISM_ANALYSIS_CONCURRENCY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables to config keys. Server entries are
	// structured and only come from the config file.
	v.BindEnv("analysis.concurrency")
	v.BindEnv("analysis.request_timeout_seconds")
	v.BindEnv("analysis.startup_timeout_seconds")
	v.BindEnv("output.path")
	v.BindEnv("output.format")
	v.BindEnv("output.hierarchy")

	// Set defaults in viper
	setDefaults(v)

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Some other error occurred while reading the config file
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate the configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	// Paths defaults
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	// Analysis defaults
	v.SetDefault("analysis.languages", defaults.Analysis.Languages)
	v.SetDefault("analysis.concurrency", defaults.Analysis.Concurrency)
	v.SetDefault("analysis.request_timeout_seconds", defaults.Analysis.RequestTimeoutSeconds)
	v.SetDefault("analysis.startup_timeout_seconds", defaults.Analysis.StartupTimeoutSeconds)

	// Output defaults
	v.SetDefault("output.path", defaults.Output.Path)
	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.hierarchy", defaults.Output.Hierarchy)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}

// LoadConfigFromFile loads configuration from an explicit config file path.
// Unlike the directory search, a missing file is an error here.
func LoadConfigFromFile(configFile string) (*Config, error) {
	return NewFileLoader(configFile).Load()
}
