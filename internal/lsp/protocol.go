package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// request is an outgoing JSON-RPC 2.0 request or notification (nil ID).
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// reply answers a server-to-client request.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// message is one decoded incoming payload. A response carries ID plus
// Result or Error; a notification carries Method; a server-to-client
// request carries both.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// Conn frames JSON-RPC 2.0 messages over a server's stdio and correlates
// responses to callers through a pending-request table keyed by id. Ids
// come from an atomic counter, so an id is never reused while its request
// is in flight. A single ReadLoop goroutine owns the read side; writes are
// serialized by a mutex. Notifications from the server are discarded (the
// engine does not consume diagnostics), and server-to-client requests get
// a null reply so well-behaved servers never stall waiting on us.
type Conn struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	nextID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan *message

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}

	logger *slog.Logger
}

// NewConn wraps a server's stdout (r) and stdin (w). The caller must run
// ReadLoop in a goroutine before issuing calls.
func NewConn(r io.Reader, w io.Writer, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		reader:  bufio.NewReader(r),
		writer:  w,
		pending: make(map[int64]chan *message),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Call sends one request and blocks until its response arrives, the
// connection dies, or ctx ends. Each result is delivered exactly once; a
// deadline removes only this call's pending entry, leaving sibling
// requests untouched.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan *message, 1)

	c.pendingMu.Lock()
	if c.closed() {
		c.pendingMu.Unlock()
		return &ProtocolError{Reason: ReasonServerCrashed, Method: method, Err: c.closeErr}
	}
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.writeMessage(request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		c.removePending(id)
		return &ProtocolError{Reason: ReasonServerCrashed, Method: method, Err: err}
	}

	select {
	case <-ctx.Done():
		c.removePending(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &ProtocolError{Reason: ReasonTimeout, Method: method, Err: ctx.Err()}
		}
		return ctx.Err()
	case msg := <-ch:
		if msg.Error != nil {
			if msg.Error.Code == codeConnectionClosed {
				return &ProtocolError{Reason: ReasonServerCrashed, Method: method, Err: c.closeErr}
			}
			return fmt.Errorf("request %s: %w", method, msg.Error)
		}
		if result != nil && len(msg.Result) > 0 && string(msg.Result) != "null" {
			if err := json.Unmarshal(msg.Result, result); err != nil {
				return &ProtocolError{Reason: ReasonMalformedMessage, Method: method, Err: err}
			}
		}
		return nil
	}
}

// Notify sends a notification; no response is expected.
func (c *Conn) Notify(method string, params any) error {
	return c.writeMessage(request{JSONRPC: "2.0", Method: method, Params: params})
}

// ReadLoop drains the server's output until the stream ends or a frame
// cannot be parsed, and must run in its own goroutine for the connection's
// lifetime. It returns io.EOF when the process closed its output at a
// message boundary and a ProtocolError otherwise; in every case all
// pending requests are failed before it returns.
func (c *Conn) ReadLoop() error {
	for {
		msg, err := c.readMessage()
		if err != nil {
			c.close(err)
			return err
		}
		c.dispatch(msg)
	}
}

// Close tears the connection down, failing anything still in flight.
func (c *Conn) Close() {
	c.close(ErrSessionTerminated)
}

func (c *Conn) readMessage() (*message, error) {
	contentLength := -1
	sawHeader := false
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" && !sawHeader {
				return nil, io.EOF
			}
			return nil, &ProtocolError{Reason: ReasonServerCrashed, Err: err}
		}
		sawHeader = true
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &ProtocolError{Reason: ReasonMalformedMessage, Err: fmt.Errorf("bad header line %q", line)}
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, &ProtocolError{Reason: ReasonMalformedMessage, Err: fmt.Errorf("bad Content-Length %q", value)}
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, &ProtocolError{Reason: ReasonMalformedMessage, Err: errors.New("missing Content-Length header")}
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, &ProtocolError{Reason: ReasonServerCrashed, Err: err}
	}
	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &ProtocolError{Reason: ReasonMalformedMessage, Err: err}
	}
	return &msg, nil
}

func (c *Conn) dispatch(msg *message) {
	switch {
	case msg.ID != nil && msg.Method == "":
		c.pendingMu.Lock()
		ch, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		c.pendingMu.Unlock()
		if !ok {
			// late response to a timed-out or abandoned request
			c.logger.Debug("dropping unmatched response", "id", *msg.ID)
			return
		}
		ch <- msg
	case msg.ID != nil:
		c.logger.Debug("answering server request with null", "method", msg.Method)
		if err := c.writeMessage(reply{JSONRPC: "2.0", ID: msg.ID, Result: json.RawMessage("null")}); err != nil {
			c.logger.Debug("null reply failed", "method", msg.Method, "error", err)
		}
	default:
		c.logger.Debug("dropping notification", "method", msg.Method)
	}
}

func (c *Conn) writeMessage(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

func (c *Conn) removePending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// close records the first failure reason and fails every pending request
// with a synthetic connection-closed response.
func (c *Conn) close(reason error) {
	c.closeOnce.Do(func() {
		c.closeErr = reason
		close(c.done)

		c.pendingMu.Lock()
		for id, ch := range c.pending {
			ch <- &message{Error: &ResponseError{Code: codeConnectionClosed, Message: "connection closed"}}
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	})
}
