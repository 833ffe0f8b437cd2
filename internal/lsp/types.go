package lsp

import "encoding/json"

// Wire types for the subset of the Language Server Protocol the engine
// speaks. Field names and optionality follow the 3.17 specification;
// anything the engine never reads is left out.

// Position is a 0-based line/character offset in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [start, end) span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a document URI plus a range inside it.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// LocationLink is the richer shape some servers return for definition
// requests.
type LocationLink struct {
	OriginSelectionRange *Range `json:"originSelectionRange,omitempty"`
	TargetURI            string `json:"targetUri"`
	TargetRange          Range  `json:"targetRange"`
	TargetSelectionRange Range  `json:"targetSelectionRange"`
}

// TextDocumentIdentifier names an open or on-disk document.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentItem carries a document's content to the server.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentPositionParams addresses one position in one document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// SymbolKind is the numeric kind vocabulary of the protocol.
type SymbolKind int

const (
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26
)

// DocumentSymbol is the hierarchical response shape of
// textDocument/documentSymbol.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Deprecated     bool             `json:"deprecated,omitempty"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat response shape older servers return for
// the same request.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// TypeHierarchyItem identifies one type in hierarchy requests. Data is an
// opaque server token that must be echoed back verbatim.
type TypeHierarchyItem struct {
	Name           string          `json:"name"`
	Kind           SymbolKind      `json:"kind"`
	Detail         string          `json:"detail,omitempty"`
	URI            string          `json:"uri"`
	Range          Range           `json:"range"`
	SelectionRange Range           `json:"selectionRange"`
	Data           json.RawMessage `json:"data,omitempty"`
}

type TypeHierarchyPrepareParams struct {
	TextDocumentPositionParams
}

type TypeHierarchySupertypesParams struct {
	Item TypeHierarchyItem `json:"item"`
}

type DefinitionParams struct {
	TextDocumentPositionParams
}

// InitializeParams is the client's half of the handshake.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               string             `json:"rootUri"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// ClientCapabilities advertises what this client understands. Only the
// parts that change server behavior for symbol extraction are declared.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

type TextDocumentClientCapabilities struct {
	DocumentSymbol *DocumentSymbolClientCapabilities `json:"documentSymbol,omitempty"`
	TypeHierarchy  *TypeHierarchyClientCapabilities  `json:"typeHierarchy,omitempty"`
	Definition     *DefinitionClientCapabilities     `json:"definition,omitempty"`
}

type DocumentSymbolClientCapabilities struct {
	HierarchicalDocumentSymbolSupport bool                `json:"hierarchicalDocumentSymbolSupport"`
	SymbolKind                        *SymbolKindValueSet `json:"symbolKind,omitempty"`
}

type SymbolKindValueSet struct {
	ValueSet []SymbolKind `json:"valueSet"`
}

type TypeHierarchyClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration"`
}

type DefinitionClientCapabilities struct {
	LinkSupport bool `json:"linkSupport"`
}

// InitializeResult is the server's half of the handshake.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ServerCapabilities keeps the provider fields as raw values because the
// protocol allows bool, object, or absent for each.
type ServerCapabilities struct {
	DocumentSymbolProvider any `json:"documentSymbolProvider,omitempty"`
	TypeHierarchyProvider  any `json:"typeHierarchyProvider,omitempty"`
	DefinitionProvider     any `json:"definitionProvider,omitempty"`
}

// providerEnabled interprets the bool-or-object convention: absent or
// false means unsupported, anything else means supported.
func providerEnabled(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func (c ServerCapabilities) HasDocumentSymbols() bool { return providerEnabled(c.DocumentSymbolProvider) }
func (c ServerCapabilities) HasTypeHierarchy() bool   { return providerEnabled(c.TypeHierarchyProvider) }
func (c ServerCapabilities) HasDefinition() bool      { return providerEnabled(c.DefinitionProvider) }

type InitializedParams struct{}
