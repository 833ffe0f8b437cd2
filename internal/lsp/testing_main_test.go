package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// The session and dispatcher tests need a real subprocess speaking the
// wire protocol. Re-executing the test binary with fakeServerEnv set
// turns it into a minimal language server on stdio, so no external
// binaries are required.
const (
	fakeServerEnv    = "PRISM_FAKE_SERVER"
	crashFlagEnv     = "PRISM_FAKE_SERVER_CRASH_FLAG"
	noHierarchyEnv   = "PRISM_FAKE_SERVER_NO_HIERARCHY"
	fakeServerSymbol = "Widget"
)

func TestMain(m *testing.M) {
	if os.Getenv(fakeServerEnv) == "1" {
		runFakeServer()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func writeFrame(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readFrame(r *bufio.Reader) (map[string]json.RawMessage, error) {
	length := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			length, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, err
			}
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("frame without Content-Length")
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// runFakeServer implements just enough of the protocol for the tests:
// the handshake, document lifecycle notifications, a canned
// documentSymbol answer, and a few test/* methods that exercise the
// failure paths. Sleep methods answer from a goroutine so the server
// keeps serving while they run. When crashFlagEnv names a path, the
// first process to see a documentSymbol request creates the file and
// dies before answering; the respawned process finds the file and
// behaves.
func runFakeServer() {
	in := bufio.NewReader(os.Stdin)
	out := os.Stdout
	var writeMu sync.Mutex
	openCount := 0

	send := func(payload map[string]any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		writeFrame(out, payload)
	}
	respond := func(id json.RawMessage, result any) {
		send(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
	}

	for {
		msg, err := readFrame(in)
		if err != nil {
			return
		}
		var method string
		if raw, ok := msg["method"]; ok {
			json.Unmarshal(raw, &method)
		}
		id := msg["id"]

		switch method {
		case "initialize":
			caps := map[string]any{
				"documentSymbolProvider": true,
				"definitionProvider":     true,
			}
			if os.Getenv(noHierarchyEnv) != "1" {
				caps["typeHierarchyProvider"] = true
			}
			respond(id, map[string]any{
				"capabilities": caps,
				"serverInfo":   map[string]any{"name": "fake-server", "version": "0.0.1"},
			})
		case "textDocument/didOpen":
			openCount++
		case "initialized", "textDocument/didClose":
			// notifications, nothing to answer
		case "shutdown":
			respond(id, nil)
		case "exit":
			os.Exit(0)
		case "textDocument/documentSymbol":
			if flag := os.Getenv(crashFlagEnv); flag != "" {
				if _, err := os.Stat(flag); os.IsNotExist(err) {
					os.WriteFile(flag, []byte("crashed"), 0o644)
					os.Exit(1)
				}
			}
			respond(id, []map[string]any{{
				"name":           fakeServerSymbol,
				"kind":           int(SymbolKindClass),
				"range":          map[string]any{"start": pos(0, 0), "end": pos(4, 1)},
				"selectionRange": map[string]any{"start": pos(0, 6), "end": pos(0, 12)},
				"children": []map[string]any{{
					"name":           "size",
					"kind":           int(SymbolKindField),
					"range":          map[string]any{"start": pos(1, 4), "end": pos(1, 14)},
					"selectionRange": map[string]any{"start": pos(1, 8), "end": pos(1, 12)},
				}},
			}})
		case "test/echo":
			respond(id, json.RawMessage(msg["params"]))
		case "test/openCount":
			respond(id, openCount)
		case "test/sleep":
			go func(id json.RawMessage) {
				time.Sleep(time.Second)
				respond(id, "slept")
			}(id)
		case "test/sleepShort":
			go func(id json.RawMessage) {
				time.Sleep(100 * time.Millisecond)
				respond(id, "ok")
			}(id)
		case "test/crashNow":
			os.Exit(1)
		default:
			if id != nil {
				send(map[string]any{
					"jsonrpc": "2.0",
					"id":      id,
					"error":   map[string]any{"code": codeMethodNotFound, "message": "method not found: " + method},
				})
			}
		}
	}
}

func pos(line, char int) map[string]int {
	return map[string]int{"line": line, "character": char}
}

// fakeServerConfig points the registry at the re-executed test binary.
func fakeServerConfig(t *testing.T) ServerConfig {
	t.Helper()
	t.Setenv(fakeServerEnv, "1")
	return ServerConfig{
		Language:   "fake",
		Command:    os.Args[0],
		Extensions: []string{".fake"},
	}
}
