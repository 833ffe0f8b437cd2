package lsp

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Dispatcher:
// 1. A crash mid-request triggers one transparent restart and the
//    request is retried against the fresh process.
// 2. A second crash marks the whole session failed; later requests
//    fail fast with the same SessionFailedError.
// 3. A timeout is not a crash: no restart, and the session keeps
//    serving.
// 4. The in-flight cap serializes requests beyond the limit.

func newFakeDispatcher(t *testing.T, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	sess := startFakeSession(t)
	return NewDispatcher(sess, cfg, discardLogger())
}

func TestDispatcherRetriesOnceAfterCrash(t *testing.T) {
	flag := filepath.Join(t.TempDir(), "crash-once")
	t.Setenv(crashFlagEnv, flag)
	d := newFakeDispatcher(t, DispatcherConfig{})

	// The first process dies on documentSymbol before replying; the
	// retry runs against the respawned process, which must have the
	// document open again without our help.
	result, err := d.DocumentSymbols(context.Background(), "/src/widget.fake", "fake", "class Widget {}")
	require.NoError(t, err)
	require.Len(t, result.Symbols, 1)
	assert.Equal(t, fakeServerSymbol, result.Symbols[0].Name)
	assert.Equal(t, SymbolKindClass, result.Symbols[0].Kind)
	require.Len(t, result.Symbols[0].Children, 1)
	assert.Equal(t, "size", result.Symbols[0].Children[0].Name)

	assert.Equal(t, StateReady, d.Session().State())
	_, err = os.Stat(flag)
	assert.NoError(t, err, "the first process should have crashed")
}

func TestDispatcherFatalAfterSecondCrash(t *testing.T) {
	d := newFakeDispatcher(t, DispatcherConfig{})

	err := d.Request(context.Background(), "test/crashNow", nil, nil)
	require.Error(t, err)

	var failed *SessionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "fake", failed.Language)

	// Everything after the death sentence fails fast with the same error.
	err2 := d.Request(context.Background(), "test/echo", nil, nil)
	assert.Equal(t, err, err2)
}

func TestDispatcherTimeoutDoesNotRestart(t *testing.T) {
	d := newFakeDispatcher(t, DispatcherConfig{RequestTimeout: 100 * time.Millisecond})

	err := d.Request(context.Background(), "test/sleep", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
	assert.False(t, IsCrash(err))

	// Same process, still alive, still answering.
	var echoed map[string]string
	require.NoError(t, d.Request(context.Background(), "test/echo", map[string]string{"k": "v"}, &echoed))
	assert.Equal(t, "v", echoed["k"])
	assert.Equal(t, StateReady, d.Session().State())
}

func TestDispatcherInFlightCap(t *testing.T) {
	d := newFakeDispatcher(t, DispatcherConfig{MaxInFlight: 1})

	// The fake answers test/sleepShort after 100ms from a goroutine, so
	// two requests overlap server-side unless the cap serializes them.
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got string
			if err := d.Request(context.Background(), "test/sleepShort", nil, &got); err != nil {
				t.Errorf("sleepShort: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}
