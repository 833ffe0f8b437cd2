package analyzer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// Test Plan for JSONSink:
// 1. The document round-trips through the written file.
// 2. No temp files survive a successful write.
// 3. Missing parent directories are created.
// 4. Two writes of the same document are byte-identical; the run id
//    never reaches the serialized form.

func sampleDocument() *symbols.Document {
	return &symbols.Document{
		Language:  "go",
		Directory: "/work/demo",
		Symbols: []*symbols.Symbol{
			{
				Name:     "Server",
				Kind:     symbols.KindStruct,
				Location: symbols.Location{File: "server.go", Range: symbols.Range{Start: symbols.Position{Line: 4}, End: symbols.Position{Line: 20, Character: 1}}},
				Preview:  "type Server struct {",
				Children: []*symbols.Symbol{
					{
						Name:     "Addr",
						Kind:     symbols.KindField,
						Location: symbols.Location{File: "server.go", Range: symbols.Range{Start: symbols.Position{Line: 5, Character: 1}, End: symbols.Position{Line: 5, Character: 12}}},
					},
				},
			},
		},
		Warnings: []symbols.Warning{{File: "broken.go", Message: "server error"}},
		RunID:    "run-1234",
	}
}

func TestJSONSinkRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "symbols.json")
	require.NoError(t, JSONSink{Path: out}.Write(sampleDocument()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var got symbols.Document
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "go", got.Language)
	require.Len(t, got.Symbols, 1)
	assert.Equal(t, "Server", got.Symbols[0].Name)
	require.Len(t, got.Symbols[0].Children, 1)
	assert.Equal(t, "Addr", got.Symbols[0].Children[0].Name)
	assert.Equal(t, []symbols.Warning{{File: "broken.go", Message: "server error"}}, got.Warnings)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "symbols.json", entries[0].Name())
}

func TestJSONSinkCreatesParentDirs(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), ".prism", "symbols.json")
	require.NoError(t, JSONSink{Path: out}.Write(sampleDocument()))

	_, err := os.Stat(out)
	require.NoError(t, err)
}

func TestJSONSinkDeterministicOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	docA := sampleDocument()
	docB := sampleDocument()
	docB.RunID = "a-different-run"

	require.NoError(t, JSONSink{Path: first}.Write(docA))
	require.NoError(t, JSONSink{Path: second}.Write(docB))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "run identity must not leak into the document")
	assert.NotContains(t, string(a), "run-1234")
}
