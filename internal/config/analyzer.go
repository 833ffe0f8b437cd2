package config

import (
	"github.com/mvp-joe/project-prism/internal/analyzer"
)

// ToAnalyzerConfig converts a Config to an analyzer.Config.
// The rootDir parameter specifies the root of the tree to analyze.
func (c *Config) ToAnalyzerConfig(rootDir string) (analyzer.Config, error) {
	registry, err := c.BuildRegistry()
	if err != nil {
		return analyzer.Config{}, err
	}
	return analyzer.Config{
		RootDir:          rootDir,
		Languages:        c.Analysis.Languages,
		Registry:         registry,
		IgnorePatterns:   c.Paths.Ignore,
		Concurrency:      c.Analysis.Concurrency,
		RequestTimeout:   c.Analysis.RequestTimeout(),
		StartupTimeout:   c.Analysis.StartupTimeout(),
		IncludeHierarchy: c.Output.Hierarchy,
	}, nil
}
