package lsp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for operations:
// 1. documentSymbol decoding handles null, the hierarchical shape, and
//    the flat shape, and rejects anything else as malformed.
// 2. definition decoding accepts Location, Location[], and
//    LocationLink[], collapsing links to their target selection.
// 3. Missing server capabilities surface as ErrUnsupportedCapability
//    before anything touches the wire.

func TestDecodeDocumentSymbolsHierarchical(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`[
		{
			"name": "Shape",
			"detail": "class Shape<T>",
			"kind": 5,
			"range": {"start": {"line": 2, "character": 0}, "end": {"line": 9, "character": 1}},
			"selectionRange": {"start": {"line": 2, "character": 6}, "end": {"line": 2, "character": 11}},
			"children": [
				{
					"name": "area",
					"kind": 6,
					"range": {"start": {"line": 4, "character": 4}, "end": {"line": 6, "character": 5}},
					"selectionRange": {"start": {"line": 4, "character": 11}, "end": {"line": 4, "character": 15}}
				}
			]
		}
	]`)

	res, err := decodeDocumentSymbols(raw)
	require.NoError(t, err)
	assert.Empty(t, res.Flat)
	require.Len(t, res.Symbols, 1)

	shape := res.Symbols[0]
	assert.Equal(t, "Shape", shape.Name)
	assert.Equal(t, "class Shape<T>", shape.Detail)
	assert.Equal(t, SymbolKindClass, shape.Kind)
	assert.Equal(t, Position{Line: 2, Character: 6}, shape.SelectionRange.Start)
	require.Len(t, shape.Children, 1)
	assert.Equal(t, "area", shape.Children[0].Name)
	assert.Equal(t, SymbolKindMethod, shape.Children[0].Kind)
}

func TestDecodeDocumentSymbolsFlat(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`[
		{
			"name": "Shape",
			"kind": 5,
			"location": {
				"uri": "file:///src/shape.java",
				"range": {"start": {"line": 2, "character": 0}, "end": {"line": 9, "character": 1}}
			}
		},
		{
			"name": "area",
			"kind": 6,
			"containerName": "Shape",
			"location": {
				"uri": "file:///src/shape.java",
				"range": {"start": {"line": 4, "character": 4}, "end": {"line": 6, "character": 5}}
			}
		}
	]`)

	res, err := decodeDocumentSymbols(raw)
	require.NoError(t, err)
	assert.Empty(t, res.Symbols)
	require.Len(t, res.Flat, 2)
	assert.Equal(t, "Shape", res.Flat[0].Name)
	assert.Equal(t, "Shape", res.Flat[1].ContainerName)
	assert.Equal(t, "file:///src/shape.java", res.Flat[1].Location.URI)
}

func TestDecodeDocumentSymbolsEmpty(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"null", "", "[]", "  null  "} {
		res, err := decodeDocumentSymbols(json.RawMessage(raw))
		require.NoError(t, err, "raw %q", raw)
		assert.Empty(t, res.Symbols)
		assert.Empty(t, res.Flat)
	}
}

func TestDecodeDocumentSymbolsMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{`{}`, `[1, 2]`, `"nope"`} {
		_, err := decodeDocumentSymbols(json.RawMessage(raw))
		require.Error(t, err, "raw %q", raw)

		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, ReasonMalformedMessage, perr.Reason)
	}
}

func TestDecodeLocations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want []Location
	}{
		{
			name: "null",
			raw:  `null`,
			want: nil,
		},
		{
			name: "single location",
			raw:  `{"uri": "file:///a.h", "range": {"start": {"line": 1, "character": 0}, "end": {"line": 1, "character": 5}}}`,
			want: []Location{{
				URI:   "file:///a.h",
				Range: Range{Start: Position{Line: 1}, End: Position{Line: 1, Character: 5}},
			}},
		},
		{
			name: "location array",
			raw:  `[{"uri": "file:///a.h", "range": {"start": {"line": 1, "character": 0}, "end": {"line": 1, "character": 5}}}]`,
			want: []Location{{
				URI:   "file:///a.h",
				Range: Range{Start: Position{Line: 1}, End: Position{Line: 1, Character: 5}},
			}},
		},
		{
			name: "empty array",
			raw:  `[]`,
			want: []Location{},
		},
		{
			name: "location links collapse to target selection",
			raw: `[{
				"targetUri": "file:///a.cpp",
				"targetRange": {"start": {"line": 10, "character": 0}, "end": {"line": 20, "character": 1}},
				"targetSelectionRange": {"start": {"line": 10, "character": 6}, "end": {"line": 10, "character": 11}}
			}]`,
			want: []Location{{
				URI:   "file:///a.cpp",
				Range: Range{Start: Position{Line: 10, Character: 6}, End: Position{Line: 10, Character: 11}},
			}},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := decodeLocations(json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeLocationsMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{`5`, `"file:///a.h"`, `[5]`} {
		_, err := decodeLocations(json.RawMessage(raw))
		require.Error(t, err, "raw %q", raw)

		var perr *ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, ReasonMalformedMessage, perr.Reason)
	}
}

func capabilityDispatcher(caps ServerCapabilities) *Dispatcher {
	sess := &Session{
		Language: "fake",
		caps:     caps,
		state:    StateReady,
		openDocs: map[string]TextDocumentItem{},
	}
	return NewDispatcher(sess, DispatcherConfig{}, discardLogger())
}

func TestOperationsRequireCapabilities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := capabilityDispatcher(ServerCapabilities{})

	_, err := d.DocumentSymbols(ctx, "/src/a.fake", "fake", "")
	assert.ErrorIs(t, err, ErrUnsupportedCapability)

	_, err = d.PrepareTypeHierarchy(ctx, "/src/a.fake", Position{})
	assert.ErrorIs(t, err, ErrUnsupportedCapability)

	_, err = d.Definition(ctx, "/src/a.fake", Position{})
	assert.ErrorIs(t, err, ErrUnsupportedCapability)
}

func TestCapabilityProviderShapes(t *testing.T) {
	t.Parallel()

	var caps ServerCapabilities
	require.NoError(t, json.Unmarshal([]byte(`{
		"documentSymbolProvider": true,
		"typeHierarchyProvider": {"workDoneProgress": true},
		"definitionProvider": false
	}`), &caps))

	assert.True(t, caps.HasDocumentSymbols())
	assert.True(t, caps.HasTypeHierarchy(), "an options object counts as enabled")
	assert.False(t, caps.HasDefinition())
	assert.False(t, ServerCapabilities{}.HasDocumentSymbols())
}
