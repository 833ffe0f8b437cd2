// Package symbols defines the normalized symbol model emitted by an
// analysis run. Every language server's output is converted into these
// types before any enrichment or filtering happens, so the rest of the
// pipeline never sees server-specific shapes.
package symbols

import "sort"

// Kind is the closed vocabulary of symbol kinds. Raw server kinds are
// mapped into it through per-language tables; unknown kinds map to
// KindUnknown rather than leaking server-specific values.
type Kind string

const (
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindEnumMember  Kind = "enumMember"
	KindFunction    Kind = "function"
	KindMethod      Kind = "method"
	KindConstructor Kind = "constructor"
	KindField       Kind = "field"
	KindProperty    Kind = "property"
	KindConstant    Kind = "constant"
	KindVariable    Kind = "variable"
	KindModule      Kind = "module"
	KindNamespace   Kind = "namespace"
	KindPackage     Kind = "package"
	KindTypedef     Kind = "typedef"
	KindUnion       Kind = "union"
	KindOperator    Kind = "operator"
	KindUnknown     Kind = "unknown"
)

// IsTypeLike reports whether symbols of this kind can declare supertypes
// and participate in the type hierarchy.
func (k Kind) IsTypeLike() bool {
	switch k {
	case KindClass, KindInterface, KindStruct, KindEnum, KindUnion, KindTypedef:
		return true
	}
	return false
}

// Position is a 0-based line/character location in a file.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p precedes q in source order.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// Range is a half-open [Start, End) span of text.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return !other.Start.Before(r.Start) && !r.End.Before(other.End)
}

// Location is a file path plus the range of the symbol's textual extent.
type Location struct {
	File  string `json:"file"`
	Range Range  `json:"range"`
}

// Supertype is one declared base type or implemented interface. Generic
// arguments are preserved as opaque strings; nested generics inside an
// argument are never re-parsed.
type Supertype struct {
	Name          string   `json:"name"`
	TypeArguments []string `json:"typeArguments,omitempty"`
}

// Definition is a cross-reference to an implementation location distinct
// from the declaration, used when a declaration and its body live in
// different files.
type Definition struct {
	File    string `json:"file"`
	Range   Range  `json:"range"`
	Preview string `json:"preview,omitempty"`
}

// Symbol is one node in the extracted tree.
type Symbol struct {
	Name           string      `json:"name"`
	Kind           Kind        `json:"kind"`
	Location       Location    `json:"location"`
	Preview        string      `json:"preview,omitempty"`
	Documentation  string      `json:"documentation,omitempty"`
	TypeParameters []string    `json:"typeParameters,omitempty"`
	Supertypes     []Supertype `json:"supertypes,omitempty"`
	Children       []*Symbol   `json:"children,omitempty"`
	Definition     *Definition `json:"definition,omitempty"`
}

// Walk visits s and every descendant in depth-first source order.
func (s *Symbol) Walk(fn func(*Symbol)) {
	fn(s)
	for _, child := range s.Children {
		child.Walk(fn)
	}
}

// SortTree orders siblings by source position at every level. Servers
// usually answer in source order already, but the children invariant is
// enforced here rather than assumed.
func SortTree(syms []*Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].Location.Range.Start.Before(syms[j].Location.Range.Start)
	})
	for _, s := range syms {
		SortTree(s.Children)
	}
}

// Warning records a file-level failure that downgraded the output instead
// of aborting the run.
type Warning struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// HierarchyEntry summarizes one type's resolved ancestor chain.
type HierarchyEntry struct {
	Name      string   `json:"name"`
	Ancestors []string `json:"ancestors"`
}

// Document is the single structured document produced by one analysis run.
// Symbols hold the per-file trees folded in discovery order; within a file
// they keep source order. RunID correlates logs and the storage sink but
// stays out of the serialized document, so unchanged inputs produce
// byte-identical output.
type Document struct {
	Language  string           `json:"language"`
	Directory string           `json:"directory"`
	Symbols   []*Symbol        `json:"symbols"`
	Warnings  []Warning        `json:"warnings,omitempty"`
	Hierarchy []HierarchyEntry `json:"hierarchy,omitempty"`
	RunID     string           `json:"-"`
}

// Count returns the total number of symbols in the document, including
// nested children.
func (d *Document) Count() int {
	n := 0
	for _, s := range d.Symbols {
		s.Walk(func(*Symbol) { n++ })
	}
	return n
}
