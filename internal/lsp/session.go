package lsp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// State is a session's position in its lifecycle.
type State int

const (
	StateStarting State = iota
	StateInitialized
	StateReady
	StateDegraded
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateInitialized:
		return "initialized"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SessionOptions bound the handshake and shutdown waits.
type SessionOptions struct {
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Session owns one language server subprocess: its stdio connection, its
// negotiated capabilities, and its lifecycle state. A session belongs to
// exactly one analysis run and is never pooled across runs.
type Session struct {
	Language string

	config  ServerConfig
	rootDir string
	opts    SessionOptions
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	conn      *Conn
	caps      ServerCapabilities
	readDone  chan struct{}
	restarted bool

	docsMu   sync.Mutex
	openDocs map[string]TextDocumentItem
}

// StartSession spawns the configured server for a workspace root and
// completes the initialize/initialized handshake. The returned session is
// Ready. A missing binary or a process that dies before the handshake
// finishes is a SpawnError; a malformed or timed-out handshake is a
// ProtocolError.
func StartSession(ctx context.Context, cfg ServerConfig, rootDir string, opts SessionOptions) (*Session, error) {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		Language: cfg.Language,
		config:   cfg,
		rootDir:  rootDir,
		opts:     opts,
		logger:   logger.With("language", cfg.Language),
		state:    StateStarting,
		openDocs: make(map[string]TextDocumentItem),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.spawn(ctx); err != nil {
		s.state = StateTerminated
		return nil, err
	}
	return s, nil
}

// spawn starts the server process and runs the handshake. Caller holds
// s.mu.
func (s *Session) spawn(ctx context.Context) error {
	path, err := exec.LookPath(s.config.Command)
	if err != nil {
		return &SpawnError{Language: s.Language, Command: s.config.Command, Err: ErrServerNotInstalled}
	}

	cmd := exec.CommandContext(ctx, path, s.config.Args...)
	cmd.Dir = s.rootDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &SpawnError{Language: s.Language, Command: s.config.Command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Language: s.Language, Command: s.config.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Language: s.Language, Command: s.config.Command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &SpawnError{Language: s.Language, Command: s.config.Command, Err: err}
	}
	s.logger.Info("starting language server", "command", path, "pid", cmd.Process.Pid)

	conn := NewConn(stdout, stdin, s.logger)
	readDone := make(chan struct{})
	s.cmd, s.stdin, s.conn, s.readDone = cmd, stdin, conn, readDone
	s.state = StateStarting

	go s.drainStderr(stderr)
	go func() {
		readErr := conn.ReadLoop()
		waitErr := cmd.Wait()
		s.onReaderExit(conn, readErr, waitErr)
		close(readDone)
	}()

	if err := s.initialize(ctx, conn); err != nil {
		conn.Close()
		stdin.Close()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		if IsCrash(err) {
			return &SpawnError{
				Language: s.Language,
				Command:  s.config.Command,
				Err:      fmt.Errorf("server exited during initialize handshake"),
			}
		}
		return err
	}
	s.state = StateReady

	// A restart inherits the documents the crashed process had open.
	s.docsMu.Lock()
	for _, item := range s.openDocs {
		if err := conn.Notify("textDocument/didOpen", DidOpenTextDocumentParams{TextDocument: item}); err != nil {
			s.logger.Debug("didOpen replay failed", "uri", item.URI, "error", err)
		}
	}
	s.docsMu.Unlock()
	return nil
}

// initialize performs the handshake and captures capabilities. Caller
// holds s.mu.
func (s *Session) initialize(ctx context.Context, conn *Conn) error {
	ictx, cancel := context.WithTimeout(ctx, s.opts.StartupTimeout)
	defer cancel()

	rootURI := PathToURI(s.rootDir)
	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   rootURI,
		Capabilities: ClientCapabilities{
			TextDocument: &TextDocumentClientCapabilities{
				DocumentSymbol: &DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
				TypeHierarchy: &TypeHierarchyClientCapabilities{},
				Definition:    &DefinitionClientCapabilities{LinkSupport: true},
			},
		},
		WorkspaceFolders: []WorkspaceFolder{{URI: rootURI, Name: filepath.Base(s.rootDir)}},
	}
	if len(s.config.InitializationOptions) > 0 {
		params.InitializationOptions = s.config.InitializationOptions
	}

	var result InitializeResult
	if err := conn.Call(ictx, "initialize", params, &result); err != nil {
		return err
	}
	s.caps = result.Capabilities
	s.state = StateInitialized

	if err := conn.Notify("initialized", InitializedParams{}); err != nil {
		return err
	}
	if result.ServerInfo != nil {
		s.logger.Debug("server initialized", "server", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	}
	return nil
}

// onReaderExit records an unexpected server exit. A conn that has already
// been replaced by a restart, or a session that was shut down on purpose,
// changes nothing.
func (s *Session) onReaderExit(conn *Conn, readErr, waitErr error) {
	s.mu.Lock()
	current := s.conn == conn && s.state != StateTerminated
	if current {
		s.state = StateDegraded
	}
	s.mu.Unlock()

	if current {
		s.logger.Warn("language server exited unexpectedly", "read_error", readErr, "wait_error", waitErr)
	}
}

func (s *Session) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.logger.Debug("server stderr", "line", scanner.Text())
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capabilities returns the feature set negotiated at initialization.
func (s *Session) Capabilities() ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Call routes one request through the current connection. Outside Ready
// the error tells the dispatcher what to do: a terminated session is
// permanent, anything else reads as a crash and feeds the restart policy.
func (s *Session) Call(ctx context.Context, method string, params, result any) error {
	s.mu.Lock()
	conn, st := s.conn, s.state
	s.mu.Unlock()

	switch st {
	case StateReady:
		return conn.Call(ctx, method, params, result)
	case StateTerminated:
		return ErrSessionTerminated
	default:
		return &ProtocolError{Reason: ReasonServerCrashed, Method: method, Err: fmt.Errorf("session is %s", st)}
	}
}

// Notify sends a notification through the current connection.
func (s *Session) Notify(method string, params any) error {
	s.mu.Lock()
	conn, st := s.conn, s.state
	s.mu.Unlock()

	switch st {
	case StateReady:
		return conn.Notify(method, params)
	case StateTerminated:
		return ErrSessionTerminated
	default:
		return &ProtocolError{Reason: ReasonServerCrashed, Method: method, Err: fmt.Errorf("session is %s", st)}
	}
}

// OpenDocument sends didOpen and remembers the document so a restarted
// server sees it again.
func (s *Session) OpenDocument(uri, languageID, text string) error {
	item := TextDocumentItem{URI: uri, LanguageID: languageID, Version: 1, Text: text}
	s.docsMu.Lock()
	s.openDocs[uri] = item
	s.docsMu.Unlock()
	return s.Notify("textDocument/didOpen", DidOpenTextDocumentParams{TextDocument: item})
}

// CloseDocument sends didClose and forgets the document.
func (s *Session) CloseDocument(uri string) error {
	s.docsMu.Lock()
	delete(s.openDocs, uri)
	s.docsMu.Unlock()
	return s.Notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// Restart replaces a crashed server process. Only one restart is allowed
// per session; after a second crash the session is done for good.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateTerminated:
		return ErrSessionTerminated
	case StateReady:
		// Ready with a live connection means another caller already
		// brought it back. Ready with a dead connection means the exit
		// has not been observed yet; fall through and restart.
		if s.conn != nil && !s.conn.closed() {
			return nil
		}
	}
	if s.restarted {
		return ErrTooManyCrashes
	}
	s.restarted = true

	if s.conn != nil {
		s.conn.Close()
	}
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}

	s.logger.Warn("restarting crashed language server")
	if err := s.spawn(ctx); err != nil {
		s.state = StateTerminated
		return err
	}
	return nil
}

// Shutdown terminates the session: graceful shutdown request and exit
// notification, bounded wait, then a kill. Idempotent, and safe to defer
// on every exit path.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return nil
	}
	s.state = StateTerminated
	conn, stdin, cmd, readDone := s.conn, s.stdin, s.cmd, s.readDone
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := conn.Call(ctx, "shutdown", nil, nil); err != nil {
		s.logger.Debug("shutdown request failed", "error", err)
	}
	if err := conn.Notify("exit", nil); err != nil {
		s.logger.Debug("exit notification failed", "error", err)
	}
	conn.Close()
	if stdin != nil {
		stdin.Close()
	}

	// The reader goroutine owns cmd.Wait; watch its completion rather
	// than double-waiting on the process.
	select {
	case <-readDone:
	case <-time.After(s.opts.ShutdownTimeout):
		s.logger.Warn("language server did not exit, killing")
		if cmd != nil && cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-readDone
	}
	s.logger.Info("language server stopped")
	return nil
}
