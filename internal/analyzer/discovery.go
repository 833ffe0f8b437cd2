package analyzer

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob. For
// patterns with a "**/" prefix, rootGlob is the same pattern anchored at
// the tree root, since "**/" itself requires at least one leading
// directory.
type compiledPattern struct {
	pattern  string
	glob     glob.Glob
	rootGlob glob.Glob
}

// DefaultIgnorePatterns are directory trees no language server should be
// pointed at. Config entries add to these, they never replace them.
var DefaultIgnorePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/target/**",
	"**/build/**",
	"**/dist/**",
	"**/__pycache__/**",
	"**/.venv/**",
}

// FileDiscovery walks a source tree and selects the files one analysis
// run should feed to its language server, by extension, minus ignores.
type FileDiscovery struct {
	rootDir    string
	extensions map[string]bool
	ignore     []compiledPattern
}

// NewFileDiscovery compiles the ignore globs up front so an invalid
// pattern fails the run before any server is spawned.
func NewFileDiscovery(rootDir string, extensions, ignorePatterns []string) (*FileDiscovery, error) {
	fd := &FileDiscovery{
		rootDir:    rootDir,
		extensions: make(map[string]bool, len(extensions)),
	}
	for _, ext := range extensions {
		fd.extensions[strings.ToLower(ext)] = true
	}

	for _, pattern := range append(append([]string{}, DefaultIgnorePatterns...), ignorePatterns...) {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		cp := compiledPattern{pattern: pattern, glob: g}
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if rg, err := glob.Compile(rest, '/'); err == nil {
				cp.rootGlob = rg
			}
		}
		fd.ignore = append(fd.ignore, cp)
	}
	return fd, nil
}

// Discover returns the matching files as root-relative, slash-separated
// paths in lexical walk order. The stable order is what makes repeated
// runs over an unchanged tree byte-identical.
func (fd *FileDiscovery) Discover() ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(fd.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(fd.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if fd.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if fd.shouldIgnore(relPath) {
			return nil
		}
		if len(fd.extensions) > 0 && !fd.extensions[strings.ToLower(filepath.Ext(relPath))] {
			return nil
		}
		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// shouldIgnore checks a relative path against the ignore set. The engine's
// own output directory is always skipped.
func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	if relPath == ".prism" || strings.HasPrefix(relPath, ".prism/") {
		return true
	}
	if fd.matchesAnyPattern(relPath) {
		return true
	}
	// A directory "node_modules" should match the pattern
	// "node_modules/**" so the whole subtree is skipped in one step.
	return fd.matchesAnyPattern(relPath + "/**")
}

func (fd *FileDiscovery) matchesAnyPattern(path string) bool {
	for _, cp := range fd.ignore {
		if cp.glob.Match(path) {
			return true
		}
		// "**/node_modules/**" must also prune a root-level node_modules
		// tree, and "**/*.min.js" a root-level app.min.js.
		if cp.rootGlob != nil && cp.rootGlob.Match(path) {
			return true
		}
	}
	return false
}
