package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Conn:
// 1. A call is framed, sent, and its response decoded into the result.
// 2. Out-of-order responses are correlated back to the right callers.
// 3. A deadline fails only the expired call and removes its pending
//    entry; the connection stays usable and a late response is dropped.
// 4. Closing the server's output fails every in-flight call as a crash.
// 5. Unparseable headers surface as malformed-message errors.
// 6. Server-to-client requests are answered with a null result.
// 7. Notifications are discarded without disturbing in-flight calls.

// testPeer is the far side of an in-memory connection, playing the
// language server role frame by frame.
type testPeer struct {
	t       *testing.T
	conn    *Conn
	in      *bufio.Reader
	out     *io.PipeWriter
	readErr chan error
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	conn := NewConn(clientIn, clientOut, slog.New(slog.NewTextHandler(io.Discard, nil)))
	readErr := make(chan error, 1)
	go func() { readErr <- conn.ReadLoop() }()

	t.Cleanup(func() {
		conn.Close()
		serverOut.Close()
		clientOut.Close()
	})
	return &testPeer{
		t:       t,
		conn:    conn,
		in:      bufio.NewReader(serverIn),
		out:     serverOut,
		readErr: readErr,
	}
}

func (p *testPeer) read() map[string]json.RawMessage {
	p.t.Helper()
	msg, err := readFrame(p.in)
	require.NoError(p.t, err)
	return msg
}

func (p *testPeer) respond(id json.RawMessage, result any) {
	p.t.Helper()
	require.NoError(p.t, writeFrame(p.out, map[string]any{"jsonrpc": "2.0", "id": id, "result": result}))
}

func TestConnCallRoundTrip(t *testing.T) {
	t.Parallel()
	peer := newTestPeer(t)

	go func() {
		msg := peer.read()
		var method string
		json.Unmarshal(msg["method"], &method)
		assert.Equal(t, "test/echo", method)
		peer.respond(msg["id"], map[string]int{"value": 42})
	}()

	var result struct {
		Value int `json:"value"`
	}
	err := peer.conn.Call(context.Background(), "test/echo", map[string]string{"hello": "world"}, &result)
	require.NoError(t, err)
	assert.Equal(t, 42, result.Value)
}

func TestConnOutOfOrderResponses(t *testing.T) {
	t.Parallel()
	peer := newTestPeer(t)

	go func() {
		first := peer.read()
		second := peer.read()
		peer.respond(second["id"], "second")
		peer.respond(first["id"], "first")
	}()

	type outcome struct {
		method string
		result string
		err    error
	}
	results := make(chan outcome, 2)
	call := func(method string) {
		var got string
		err := peer.conn.Call(context.Background(), method, nil, &got)
		results <- outcome{method: method, result: got, err: err}
	}
	go call("test/first")
	// Frame order on the wire must match call order for the peer script.
	time.Sleep(20 * time.Millisecond)
	go call("test/second")

	byMethod := map[string]outcome{}
	for i := 0; i < 2; i++ {
		o := <-results
		require.NoError(t, o.err)
		byMethod[o.method] = o
	}
	assert.Equal(t, "first", byMethod["test/first"].result)
	assert.Equal(t, "second", byMethod["test/second"].result)
}

func TestConnCallTimeout(t *testing.T) {
	t.Parallel()
	peer := newTestPeer(t)

	frames := make(chan map[string]json.RawMessage, 2)
	go func() {
		for {
			msg, err := readFrame(peer.in)
			if err != nil {
				return
			}
			frames <- msg
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := peer.conn.Call(ctx, "test/slow", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "test/slow", perr.Method)

	peer.conn.pendingMu.Lock()
	remaining := len(peer.conn.pending)
	peer.conn.pendingMu.Unlock()
	assert.Zero(t, remaining, "expired call should not leak a pending entry")

	// A late response for the abandoned id is dropped, and the
	// connection keeps serving new calls.
	slow := <-frames
	peer.respond(slow["id"], "too late")

	done := make(chan error, 1)
	go func() {
		msg := <-frames
		peer.respond(msg["id"], "pong")
	}()
	go func() {
		var got string
		err := peer.conn.Call(context.Background(), "test/ping", nil, &got)
		if err == nil && got != "pong" {
			err = errors.New("unexpected result " + got)
		}
		done <- err
	}()
	require.NoError(t, <-done)
}

func TestConnCrashFailsAllPending(t *testing.T) {
	t.Parallel()
	peer := newTestPeer(t)

	started := make(chan struct{}, 2)
	go func() {
		peer.read()
		started <- struct{}{}
		peer.read()
		started <- struct{}{}
	}()

	errs := make(chan error, 2)
	go func() { errs <- peer.conn.Call(context.Background(), "test/one", nil, nil) }()
	<-started
	go func() { errs <- peer.conn.Call(context.Background(), "test/two", nil, nil) }()
	<-started

	// Server dies with both requests outstanding.
	peer.out.Close()

	for i := 0; i < 2; i++ {
		err := <-errs
		require.Error(t, err)
		assert.True(t, IsCrash(err), "expected crash, got %v", err)
	}
	assert.ErrorIs(t, <-peer.readErr, io.EOF)

	// New calls fail fast once the connection is gone.
	err := peer.conn.Call(context.Background(), "test/three", nil, nil)
	assert.True(t, IsCrash(err))
}

func TestConnMalformedFrames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{name: "header without colon", raw: "garbage header\r\n\r\n"},
		{name: "unparseable length", raw: "Content-Length: ponies\r\n\r\n"},
		{name: "missing length", raw: "X-Custom: 1\r\n\r\n"},
		{name: "body is not json", raw: "Content-Length: 4\r\n\r\n{{{{"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			peer := newTestPeer(t)

			go func() {
				peer.read()
				io.WriteString(peer.out, tc.raw)
			}()

			err := peer.conn.Call(context.Background(), "test/echo", nil, nil)
			require.Error(t, err)
			assert.True(t, IsCrash(err), "pending call fails when the connection dies, got %v", err)

			var perr *ProtocolError
			readErr := <-peer.readErr
			require.ErrorAs(t, readErr, &perr)
			assert.Equal(t, ReasonMalformedMessage, perr.Reason)
		})
	}
}

func TestConnServerRequestAnsweredWithNull(t *testing.T) {
	t.Parallel()
	peer := newTestPeer(t)

	require.NoError(t, writeFrame(peer.out, map[string]any{
		"jsonrpc": "2.0",
		"id":      99,
		"method":  "workspace/configuration",
		"params":  map[string]any{"items": []any{}},
	}))

	msg := peer.read()
	var id int
	require.NoError(t, json.Unmarshal(msg["id"], &id))
	assert.Equal(t, 99, id)
	assert.Equal(t, "null", string(msg["result"]))
	assert.NotContains(t, msg, "method")
}

func TestConnNotificationsAreDiscarded(t *testing.T) {
	t.Parallel()
	peer := newTestPeer(t)

	require.NoError(t, writeFrame(peer.out, map[string]any{
		"jsonrpc": "2.0",
		"method":  "window/logMessage",
		"params":  map[string]any{"type": 3, "message": "indexing"},
	}))

	go func() {
		msg := peer.read()
		peer.respond(msg["id"], "alive")
	}()

	var got string
	require.NoError(t, peer.conn.Call(context.Background(), "test/echo", nil, &got))
	assert.Equal(t, "alive", got)
}

func TestConnNotifyWritesFrame(t *testing.T) {
	t.Parallel()
	peer := newTestPeer(t)

	go func() {
		require.NoError(t, peer.conn.Notify("initialized", InitializedParams{}))
	}()

	msg := peer.read()
	var method string
	require.NoError(t, json.Unmarshal(msg["method"], &method))
	assert.Equal(t, "initialized", method)
	assert.NotContains(t, msg, "id")
}
