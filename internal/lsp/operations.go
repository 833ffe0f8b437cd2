package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// DocumentSymbolResult carries the two legal response shapes of
// textDocument/documentSymbol. Exactly one side is populated.
type DocumentSymbolResult struct {
	Symbols []DocumentSymbol
	Flat    []SymbolInformation
}

// DocumentSymbols opens the document, requests its symbol tree, and
// closes it again. Both the hierarchical and the flat response shape are
// accepted; callers normalize from whichever side is set.
func (d *Dispatcher) DocumentSymbols(ctx context.Context, path, languageID, text string) (*DocumentSymbolResult, error) {
	if !d.session.Capabilities().HasDocumentSymbols() {
		return nil, fmt.Errorf("%w: textDocument/documentSymbol", ErrUnsupportedCapability)
	}

	uri := PathToURI(path)
	if err := d.session.OpenDocument(uri, languageID, text); err != nil && !IsCrash(err) {
		// A crash here repairs itself: the restart replays open documents
		// before the request below is retried.
		return nil, err
	}
	defer d.session.CloseDocument(uri)

	var raw json.RawMessage
	params := DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: uri}}
	if err := d.Request(ctx, "textDocument/documentSymbol", params, &raw); err != nil {
		if IsMethodNotFound(err) {
			return nil, fmt.Errorf("%w: textDocument/documentSymbol", ErrUnsupportedCapability)
		}
		return nil, err
	}
	return decodeDocumentSymbols(raw)
}

// decodeDocumentSymbols picks the response shape by probing the first
// element for selectionRange, which only DocumentSymbol carries.
func decodeDocumentSymbols(raw json.RawMessage) (*DocumentSymbolResult, error) {
	res := &DocumentSymbolResult{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return res, nil
	}

	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, &ProtocolError{Reason: ReasonMalformedMessage, Method: "textDocument/documentSymbol", Err: err}
	}
	if len(probe) == 0 {
		return res, nil
	}

	if _, hierarchical := probe[0]["selectionRange"]; hierarchical {
		if err := json.Unmarshal(trimmed, &res.Symbols); err != nil {
			return nil, &ProtocolError{Reason: ReasonMalformedMessage, Method: "textDocument/documentSymbol", Err: err}
		}
		return res, nil
	}
	if err := json.Unmarshal(trimmed, &res.Flat); err != nil {
		return nil, &ProtocolError{Reason: ReasonMalformedMessage, Method: "textDocument/documentSymbol", Err: err}
	}
	return res, nil
}

// PrepareTypeHierarchy resolves the hierarchy item for the type declared
// at a position. Servers without the capability (or answering method not
// found) yield ErrUnsupportedCapability so callers degrade instead of
// failing the file.
func (d *Dispatcher) PrepareTypeHierarchy(ctx context.Context, path string, pos Position) ([]TypeHierarchyItem, error) {
	if !d.session.Capabilities().HasTypeHierarchy() {
		return nil, fmt.Errorf("%w: textDocument/prepareTypeHierarchy", ErrUnsupportedCapability)
	}

	params := TypeHierarchyPrepareParams{TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
		Position:     pos,
	}}
	var items []TypeHierarchyItem
	if err := d.Request(ctx, "textDocument/prepareTypeHierarchy", params, &items); err != nil {
		if IsMethodNotFound(err) {
			return nil, fmt.Errorf("%w: textDocument/prepareTypeHierarchy", ErrUnsupportedCapability)
		}
		return nil, err
	}
	return items, nil
}

// Supertypes lists the declared parents of a hierarchy item. The item's
// opaque Data token is echoed back verbatim.
func (d *Dispatcher) Supertypes(ctx context.Context, item TypeHierarchyItem) ([]TypeHierarchyItem, error) {
	var parents []TypeHierarchyItem
	if err := d.Request(ctx, "typeHierarchy/supertypes", TypeHierarchySupertypesParams{Item: item}, &parents); err != nil {
		if IsMethodNotFound(err) {
			return nil, fmt.Errorf("%w: typeHierarchy/supertypes", ErrUnsupportedCapability)
		}
		return nil, err
	}
	return parents, nil
}

// Definition resolves where the symbol at a position is defined. The
// protocol allows Location, Location[], or LocationLink[]; all collapse
// to plain locations.
func (d *Dispatcher) Definition(ctx context.Context, path string, pos Position) ([]Location, error) {
	if !d.session.Capabilities().HasDefinition() {
		return nil, fmt.Errorf("%w: textDocument/definition", ErrUnsupportedCapability)
	}

	params := DefinitionParams{TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
		Position:     pos,
	}}
	var raw json.RawMessage
	if err := d.Request(ctx, "textDocument/definition", params, &raw); err != nil {
		if IsMethodNotFound(err) {
			return nil, fmt.Errorf("%w: textDocument/definition", ErrUnsupportedCapability)
		}
		return nil, err
	}
	return decodeLocations(raw)
}

func decodeLocations(raw json.RawMessage) ([]Location, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var loc Location
		if err := json.Unmarshal(trimmed, &loc); err != nil {
			return nil, &ProtocolError{Reason: ReasonMalformedMessage, Method: "textDocument/definition", Err: err}
		}
		return []Location{loc}, nil
	case '[':
		var locs []Location
		if err := json.Unmarshal(trimmed, &locs); err == nil && (len(locs) == 0 || locs[0].URI != "") {
			return locs, nil
		}
		var links []LocationLink
		if err := json.Unmarshal(trimmed, &links); err != nil {
			return nil, &ProtocolError{Reason: ReasonMalformedMessage, Method: "textDocument/definition", Err: err}
		}
		out := make([]Location, len(links))
		for i, link := range links {
			out[i] = Location{URI: link.TargetURI, Range: link.TargetSelectionRange}
		}
		return out, nil
	default:
		return nil, &ProtocolError{
			Reason: ReasonMalformedMessage,
			Method: "textDocument/definition",
			Err:    fmt.Errorf("unexpected definition payload %q", trimmed[0]),
		}
	}
}
