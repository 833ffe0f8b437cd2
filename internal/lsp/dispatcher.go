package lsp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DispatcherConfig bounds request traffic for one session.
type DispatcherConfig struct {
	// MaxInFlight caps concurrent requests on the session; extra callers
	// wait for a slot. Zero means 4.
	MaxInFlight int64

	// RequestTimeout bounds each request attempt. A timeout fails only
	// that request. Zero means 30s.
	RequestTimeout time.Duration
}

// Dispatcher routes requests to one session. It enforces the per-session
// concurrency cap and the per-request timeout, and applies the
// restart-once crash policy: the first crash restarts the server and
// retries the requests that were in flight at crash time; a second crash
// or a malformed message is fatal for that language and every later call
// reports it.
type Dispatcher struct {
	session *Session
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	recoverMu sync.Mutex
	fatal     error
}

// NewDispatcher wraps a ready session.
func NewDispatcher(session *Session, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		session: session,
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		timeout: cfg.RequestTimeout,
		logger:  logger.With("language", session.Language),
	}
}

// Session returns the dispatcher's underlying session.
func (d *Dispatcher) Session() *Session { return d.session }

// Capabilities reports what the wrapped session's server negotiated.
func (d *Dispatcher) Capabilities() ServerCapabilities { return d.session.Capabilities() }

// Request issues one request and delivers its result exactly once.
func (d *Dispatcher) Request(ctx context.Context, method string, params, result any) error {
	if err := d.fatalErr(); err != nil {
		return err
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)

	err := d.attempt(ctx, method, params, result)
	if IsMalformed(err) {
		// Unparseable bytes mean the conversation itself is broken;
		// restarting would just replay the confusion.
		return d.markFatal(err)
	}
	if !IsCrash(err) {
		return err
	}

	// First crash: bring the server back and retry this in-flight
	// request once.
	d.logger.Warn("request lost to server crash, restarting", "method", method)
	if rerr := d.recover(ctx); rerr != nil {
		return rerr
	}
	err = d.attempt(ctx, method, params, result)
	if IsCrash(err) {
		return d.markFatal(err)
	}
	return err
}

func (d *Dispatcher) attempt(ctx context.Context, method string, params, result any) error {
	tctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.session.Call(tctx, method, params, result)
}

// recover serializes restart attempts. Only the first crasher actually
// restarts; later callers block here and fall through once the session is
// Ready again.
func (d *Dispatcher) recover(ctx context.Context) error {
	d.recoverMu.Lock()
	defer d.recoverMu.Unlock()
	if d.fatal != nil {
		return d.fatal
	}
	if err := d.session.Restart(ctx); err != nil {
		return d.markFatalLocked(err)
	}
	return nil
}

func (d *Dispatcher) fatalErr() error {
	d.recoverMu.Lock()
	defer d.recoverMu.Unlock()
	return d.fatal
}

func (d *Dispatcher) markFatal(cause error) error {
	d.recoverMu.Lock()
	defer d.recoverMu.Unlock()
	return d.markFatalLocked(cause)
}

func (d *Dispatcher) markFatalLocked(cause error) error {
	// Run cancellation and deliberate shutdown are not server failures;
	// report them as-is without poisoning the session.
	if errors.Is(cause, ErrSessionTerminated) || errors.Is(cause, context.Canceled) {
		return cause
	}
	if d.fatal == nil {
		d.fatal = &SessionFailedError{Language: d.session.Language, Err: cause}
		d.logger.Error("language analysis aborted", "cause", cause)
	}
	return d.fatal
}
