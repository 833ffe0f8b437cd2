package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// maxCachedFiles bounds the line cache. Extraction touches a file once per
// symbol, so hot files stay resident for the whole run.
const maxCachedFiles = 4096

// maxPreviewLines caps multi-line declaration previews.
const maxPreviewLines = 8

// sourceReader hands out the split lines of workspace files. Comment
// attachment and preview extraction re-read the same files many times per
// run, so lines are cached.
type sourceReader struct {
	rootDir string
	cache   otter.Cache[string, []string]
}

func newSourceReader(rootDir string) (*sourceReader, error) {
	cache, err := otter.MustBuilder[string, []string](maxCachedFiles).Build()
	if err != nil {
		return nil, err
	}
	return &sourceReader{rootDir: rootDir, cache: cache}, nil
}

// Lines returns the file's content split at newlines. relPath is
// root-relative with forward slashes, matching discovery output.
func (sr *sourceReader) Lines(relPath string) ([]string, error) {
	if lines, ok := sr.cache.Get(relPath); ok {
		return lines, nil
	}
	data, err := os.ReadFile(filepath.Join(sr.rootDir, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, err
	}
	lines := splitLines(string(data))
	sr.cache.Set(relPath, lines)
	return lines, nil
}

// Content returns the file's text for the didOpen notification. Rebuilt
// from the cached lines so a file is read from disk at most once per run.
func (sr *sourceReader) Content(relPath string) (string, error) {
	lines, err := sr.Lines(relPath)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func (sr *sourceReader) Close() {
	sr.cache.Close()
}

// splitLines splits on \n and drops trailing \r so CRLF files behave like
// LF files.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// previewFor returns the verbatim declaration text for a symbol: the lines
// from the start of its range up to the one that opens the body or ends
// the statement, never past the range end.
func previewFor(lines []string, rng symbols.Range) string {
	start := rng.Start.Line
	if start < 0 || start >= len(lines) {
		return ""
	}
	end := rng.End.Line
	if end >= len(lines) {
		end = len(lines) - 1
	}
	if end-start+1 > maxPreviewLines {
		end = start + maxPreviewLines - 1
	}
	var taken []string
	for i := start; i <= end; i++ {
		line := lines[i]
		taken = append(taken, line)
		if declarationHeadEnds(line) {
			break
		}
	}
	return strings.Join(taken, "\n")
}

// declarationHeadEnds reports whether a declaration head finishes on this
// line, either by opening its body, terminating the statement, or ending a
// Python-style suite header.
func declarationHeadEnds(line string) bool {
	if strings.ContainsAny(line, "{;") {
		return true
	}
	return strings.HasSuffix(strings.TrimSpace(line), ":")
}
