package analyzer

import (
	"strings"

	"github.com/mvp-joe/project-prism/internal/lsp"
	"github.com/mvp-joe/project-prism/internal/symbols"
)

// languageRules is the per-language normalization table. Everything the
// pipeline does differently per language lives here as data, so adding a
// language means adding a table entry, not new branches.
type languageRules struct {
	// generic delimiters, e.g. <> for Java or [] for Python
	openDelim  byte
	closeDelim byte

	// keywords that introduce the inheritance clause of a declaration,
	// tried in order; a bare ":" covers the C++ base-clause style
	inheritKeywords []string

	// keywords that end the declaration for parsing purposes; what
	// follows them is not inheritance (Java's permits lists subtypes)
	clauseTerminators []string

	// bases declared in parentheses after the type name (Python)
	parenBases bool

	// modifiers stripped from the front of a supertype reference
	supertypeModifiers []string

	// bound separators inside a type-parameter entry; the parameter name
	// is the token left of the first one
	boundKeywords []string

	// the parameter name leads its entry ("T any") instead of trailing a
	// keyword ("typename T")
	paramNameFirst bool

	lineComments []string
	blockOpen    string
	blockClose   string
	margin       string // leading marker stripped inside block comments

	// declarations starting with one of these keywords, with no body and
	// a trailing semicolon, are forward declarations
	forwardDeclKeywords []string

	// name fragments marking server-generated placeholders for anonymous
	// types (companion-merge candidates)
	anonymousMarkers []string

	// member previews starting with one of these are relationship-only
	// declarations, not real members
	friendPrefixes []string

	// raw server kinds remapped on top of the shared defaults
	kindOverrides map[lsp.SymbolKind]symbols.Kind
}

// defaultKindMap converts LSP symbol kinds into the closed vocabulary.
// Data-literal kinds (String, Number, ...) collapse to variable; servers
// emit them for top-level values in scripting languages.
var defaultKindMap = map[lsp.SymbolKind]symbols.Kind{
	lsp.SymbolKindFile:          symbols.KindModule,
	lsp.SymbolKindModule:        symbols.KindModule,
	lsp.SymbolKindNamespace:     symbols.KindNamespace,
	lsp.SymbolKindPackage:       symbols.KindPackage,
	lsp.SymbolKindClass:         symbols.KindClass,
	lsp.SymbolKindMethod:        symbols.KindMethod,
	lsp.SymbolKindProperty:      symbols.KindProperty,
	lsp.SymbolKindField:         symbols.KindField,
	lsp.SymbolKindConstructor:   symbols.KindConstructor,
	lsp.SymbolKindEnum:          symbols.KindEnum,
	lsp.SymbolKindInterface:     symbols.KindInterface,
	lsp.SymbolKindFunction:      symbols.KindFunction,
	lsp.SymbolKindVariable:      symbols.KindVariable,
	lsp.SymbolKindConstant:      symbols.KindConstant,
	lsp.SymbolKindString:        symbols.KindVariable,
	lsp.SymbolKindNumber:        symbols.KindVariable,
	lsp.SymbolKindBoolean:       symbols.KindVariable,
	lsp.SymbolKindArray:         symbols.KindVariable,
	lsp.SymbolKindObject:        symbols.KindVariable,
	lsp.SymbolKindKey:           symbols.KindVariable,
	lsp.SymbolKindNull:          symbols.KindVariable,
	lsp.SymbolKindEnumMember:    symbols.KindEnumMember,
	lsp.SymbolKindStruct:        symbols.KindStruct,
	lsp.SymbolKindEvent:         symbols.KindUnknown,
	lsp.SymbolKindOperator:      symbols.KindOperator,
	lsp.SymbolKindTypeParameter: symbols.KindUnknown,
}

var (
	cStyleComments = struct {
		line                []string
		open, close, margin string
	}{[]string{"//"}, "/*", "*/", "*"}

	javaRules = languageRules{
		openDelim:         '<',
		closeDelim:        '>',
		inheritKeywords:   []string{"extends", "implements"},
		clauseTerminators: []string{"permits"},
		boundKeywords:     []string{"extends", "super"},
		lineComments:      cStyleComments.line,
		blockOpen:         cStyleComments.open,
		blockClose:        cStyleComments.close,
		margin:            cStyleComments.margin,
		forwardDeclKeywords: []string{
			"class", "interface", "enum", "record",
		},
		anonymousMarkers: []string{"(anonymous", "new "},
		// jdtls tags records with the struct kind; the output treats a
		// record like any declared type
		kindOverrides: map[lsp.SymbolKind]symbols.Kind{
			lsp.SymbolKindStruct: symbols.KindClass,
		},
	}

	cppRules = languageRules{
		openDelim:          '<',
		closeDelim:         '>',
		inheritKeywords:    []string{":"},
		supertypeModifiers: []string{"public", "protected", "private", "virtual"},
		boundKeywords:      []string{},
		lineComments:       cStyleComments.line,
		blockOpen:          cStyleComments.open,
		blockClose:         cStyleComments.close,
		margin:             cStyleComments.margin,
		forwardDeclKeywords: []string{
			"class", "struct", "union", "enum",
		},
		anonymousMarkers: []string{"(anonymous", "(unnamed", "__anon"},
		friendPrefixes:   []string{"friend "},
	}

	tsRules = languageRules{
		openDelim:       '<',
		closeDelim:      '>',
		inheritKeywords: []string{"extends", "implements"},
		boundKeywords:   []string{"extends"},
		lineComments:    cStyleComments.line,
		blockOpen:       cStyleComments.open,
		blockClose:      cStyleComments.close,
		margin:          cStyleComments.margin,
		forwardDeclKeywords: []string{
			"declare class", "declare interface", "class", "interface",
		},
		anonymousMarkers: []string{"<anonymous>", "(anonymous"},
	}

	pythonRules = languageRules{
		openDelim:    '[',
		closeDelim:   ']',
		parenBases:   true,
		lineComments: []string{"#"},
		blockOpen:    `"""`,
		blockClose:   `"""`,
	}

	rustRules = languageRules{
		openDelim:       '<',
		closeDelim:      '>',
		inheritKeywords: []string{":"},
		boundKeywords:   []string{":"},
		lineComments:    []string{"///", "//!", "//"},
		blockOpen:       "/*",
		blockClose:      "*/",
		margin:          "*",
		anonymousMarkers: []string{
			"(anonymous",
		},
	}

	goRules = languageRules{
		openDelim:      '[',
		closeDelim:     ']',
		paramNameFirst: true,
		lineComments:   cStyleComments.line,
		blockOpen:      cStyleComments.open,
		blockClose:     cStyleComments.close,
		margin:         cStyleComments.margin,
	}
)

// rulesByLanguage keys the tables by the registry's language ids.
var rulesByLanguage = map[string]languageRules{
	"java":       javaRules,
	"c":          cppRules,
	"cpp":        cppRules,
	"typescript": tsRules,
	"javascript": tsRules,
	"python":     pythonRules,
	"rust":       rustRules,
	"go":         goRules,
}

// rulesFor returns the table for a language, falling back to C-style
// defaults so an unknown language still gets sane comment handling.
func rulesFor(language string) languageRules {
	if r, ok := rulesByLanguage[strings.ToLower(language)]; ok {
		return r
	}
	return languageRules{
		openDelim:    '<',
		closeDelim:   '>',
		lineComments: cStyleComments.line,
		blockOpen:    cStyleComments.open,
		blockClose:   cStyleComments.close,
		margin:       cStyleComments.margin,
	}
}

// mapKind converts a raw server kind using the language's overrides first
// and the shared defaults second.
func (r languageRules) mapKind(raw lsp.SymbolKind) symbols.Kind {
	if k, ok := r.kindOverrides[raw]; ok {
		return k
	}
	if k, ok := defaultKindMap[raw]; ok {
		return k
	}
	return symbols.KindUnknown
}

// isAnonymousName reports whether a server-assigned name marks an
// anonymous placeholder type.
func (r languageRules) isAnonymousName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range r.anonymousMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isFriendDecl reports whether a member preview is a relationship-only
// declaration rather than a real member.
func (r languageRules) isFriendDecl(preview string) bool {
	trimmed := strings.TrimSpace(preview)
	for _, prefix := range r.friendPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
