package lsp

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ServerConfig describes how to run one language's server and which files
// belong to it. RootFiles are workspace markers (go.mod,
// compile_commands.json, ...) passed through opaquely; the engine never
// validates their content. HeaderExtensions mark files whose declarations
// may have their bodies in another file, which enables definition linking.
type ServerConfig struct {
	Language              string         `yaml:"language" mapstructure:"language"`
	Command               string         `yaml:"command" mapstructure:"command"`
	Args                  []string       `yaml:"args" mapstructure:"args"`
	Extensions            []string       `yaml:"extensions" mapstructure:"extensions"`
	HeaderExtensions      []string       `yaml:"header_extensions" mapstructure:"header_extensions"`
	RootFiles             []string       `yaml:"root_files" mapstructure:"root_files"`
	InitializationOptions map[string]any `yaml:"initialization_options" mapstructure:"initialization_options"`
}

// IsHeaderFile reports whether path belongs to this language's header-like
// files.
func (c ServerConfig) IsHeaderFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, h := range c.HeaderExtensions {
		if ext == h {
			return true
		}
	}
	return false
}

// defaultServersYAML is the built-in server registry. Kept as data rather
// than code so adding a language stays additive; user config entries merge
// over these by language id.
const defaultServersYAML = `
- language: go
  command: gopls
  args: [serve]
  extensions: [.go]
  root_files: [go.mod, go.work]
- language: python
  command: pyright-langserver
  args: [--stdio]
  extensions: [.py]
  root_files: [pyproject.toml, setup.py, requirements.txt]
- language: typescript
  command: typescript-language-server
  args: [--stdio]
  extensions: [.ts, .tsx]
  root_files: [tsconfig.json, package.json]
- language: javascript
  command: typescript-language-server
  args: [--stdio]
  extensions: [.js, .jsx]
  root_files: [package.json]
- language: rust
  command: rust-analyzer
  args: []
  extensions: [.rs]
  root_files: [Cargo.toml]
- language: java
  command: jdtls
  args: []
  extensions: [.java]
  root_files: [pom.xml, build.gradle, .project]
- language: c
  command: clangd
  args: [--background-index=false]
  extensions: [.c, .h]
  header_extensions: [.h]
  root_files: [compile_commands.json, Makefile]
- language: cpp
  command: clangd
  args: [--background-index=false]
  extensions: [.cpp, .cc, .cxx, .hpp, .hh, .h]
  header_extensions: [.h, .hpp, .hh]
  root_files: [compile_commands.json, CMakeLists.txt, Makefile]
`

// Registry maps language ids to server configurations and file extensions
// to language ids. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string]ServerConfig
	byExt      map[string]string
}

// NewRegistry returns a registry pre-populated with the built-in servers.
// Later registrations win extension collisions, so cpp claims .h over c,
// matching how mixed C/C++ trees are usually served by clangd.
func NewRegistry() *Registry {
	r := &Registry{
		byLanguage: make(map[string]ServerConfig),
		byExt:      make(map[string]string),
	}
	var defaults []ServerConfig
	if err := yaml.Unmarshal([]byte(defaultServersYAML), &defaults); err != nil {
		panic(fmt.Sprintf("lsp: invalid built-in server registry: %v", err))
	}
	for _, cfg := range defaults {
		if err := r.Register(cfg); err != nil {
			panic(fmt.Sprintf("lsp: invalid built-in server entry %q: %v", cfg.Language, err))
		}
	}
	return r
}

// Register adds or replaces one language's configuration.
func (r *Registry) Register(cfg ServerConfig) error {
	if cfg.Language == "" {
		return fmt.Errorf("server config missing language id")
	}
	if cfg.Command == "" {
		return fmt.Errorf("server config for %s missing command", cfg.Language)
	}
	if len(cfg.Extensions) == 0 {
		return fmt.Errorf("server config for %s has no file extensions", cfg.Language)
	}

	norm := make([]string, len(cfg.Extensions))
	for i, ext := range cfg.Extensions {
		norm[i] = normalizeExt(ext)
	}
	cfg.Extensions = norm
	if len(cfg.HeaderExtensions) > 0 {
		hnorm := make([]string, len(cfg.HeaderExtensions))
		for i, ext := range cfg.HeaderExtensions {
			hnorm[i] = normalizeExt(ext)
		}
		cfg.HeaderExtensions = hnorm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[cfg.Language] = cfg
	for _, ext := range cfg.Extensions {
		r.byExt[ext] = cfg.Language
	}
	return nil
}

// Lookup returns the configuration for a language id.
func (r *Registry) Lookup(language string) (ServerConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byLanguage[language]
	return cfg, ok
}

// LanguageForFile maps a file path to the language claiming its extension.
func (r *Registry) LanguageForFile(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Languages returns all registered language ids, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// ExtensionsFor returns the union of the given languages' extensions,
// sorted. An empty language list means every registered language.
func (r *Registry) ExtensionsFor(languages []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(languages) == 0 {
		languages = make([]string, 0, len(r.byLanguage))
		for lang := range r.byLanguage {
			languages = append(languages, lang)
		}
	}
	seen := make(map[string]bool)
	for _, lang := range languages {
		cfg, ok := r.byLanguage[lang]
		if !ok {
			continue
		}
		for _, ext := range cfg.Extensions {
			seen[ext] = true
		}
	}
	out := make([]string, 0, len(seen))
	for ext := range seen {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
