package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// Sink consumes one finished document. Sinks are write-only: the engine
// never reads a previous run's output back.
type Sink interface {
	Write(doc *symbols.Document) error
}

// JSONSink renders the document as indented JSON. Path "-" (or empty)
// streams to stdout; any other path is written atomically so an
// interrupted run never leaves a truncated document behind.
type JSONSink struct {
	Path string
}

func (s JSONSink) Write(doc *symbols.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	data = append(data, '\n')

	if s.Path == "" || s.Path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return writeFileAtomic(s.Path, data)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place. Rename within one directory is atomic on every
// platform we run on, so readers see the old document or the new one,
// never a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
