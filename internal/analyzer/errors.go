package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvp-joe/project-prism/internal/lsp"
)

// FileError marks a single file's extraction as failed. It downgrades
// that file to a warning in the output document; the run continues.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// isFatal separates failures that abort the run from those recorded as
// file warnings. Spawn failures, exhausted sessions, malformed traffic,
// and cancellation are fatal; timeouts, unsupported capabilities, and
// per-file read errors only cost the file.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	// A per-request timeout wraps DeadlineExceeded but costs only its
	// file; check it before the bare context causes.
	if lsp.IsTimeout(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var spawn *lsp.SpawnError
	if errors.As(err, &spawn) {
		return true
	}
	var failed *lsp.SessionFailedError
	if errors.As(err, &failed) {
		return true
	}
	if errors.Is(err, lsp.ErrSessionTerminated) || errors.Is(err, lsp.ErrTooManyCrashes) {
		return true
	}
	return lsp.IsMalformed(err)
}
