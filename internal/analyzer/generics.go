package analyzer

import (
	"strings"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// declarationInfo is what the tokenizer recovers from one declaration
// line: the generic parameters the symbol declares itself, and its
// declared supertypes with their type arguments kept as opaque text.
type declarationInfo struct {
	TypeParameters []string
	Supertypes     []symbols.Supertype
}

// parseDeclaration tokenizes a declaration by bracket depth. It never
// recurses into nested generics: a top-level argument like
// Map<String, List<Y>> stays one opaque string. Unbalanced brackets
// degrade to capturing the remainder as a single argument instead of
// failing the symbol.
func parseDeclaration(decl string, kind symbols.Kind, r languageRules) declarationInfo {
	decl = collapseSpace(decl)
	decl = strings.TrimSuffix(strings.TrimSuffix(decl, ";"), ":")
	if cut := indexTopLevel(decl, "{", r); cut >= 0 {
		decl = strings.TrimSpace(decl[:cut])
	}
	for _, kw := range r.clauseTerminators {
		if cut := indexTopLevelWord(decl, kw, r); cut >= 0 {
			decl = strings.TrimSpace(decl[:cut])
		}
	}

	var info declarationInfo
	switch {
	case kind.IsTypeLike():
		head, tail := splitInheritance(decl, r)
		info.TypeParameters = parseTypeParams(head, r)
		if r.parenBases {
			info.Supertypes = parseParenBases(head, r)
		}
		info.Supertypes = append(info.Supertypes, parseSupertypeClause(tail, r)...)
	case kind == symbols.KindFunction || kind == symbols.KindMethod ||
		kind == symbols.KindConstructor || kind == symbols.KindOperator:
		head := decl
		if cut := strings.IndexByte(decl, '('); cut >= 0 {
			head = decl[:cut]
		}
		info.TypeParameters = parseTypeParams(head, r)
	}
	return info
}

// parseTypeRef splits one supertype reference into its bare name and
// top-level type arguments.
func parseTypeRef(ref string, r languageRules) symbols.Supertype {
	ref = strings.TrimSpace(collapseSpace(ref))
	ref = stripModifiers(ref, r.supertypeModifiers)

	open := strings.IndexByte(ref, r.openDelim)
	if open < 0 {
		return symbols.Supertype{Name: ref}
	}
	name := strings.TrimSpace(ref[:open])

	inner, balanced := innerGroup(ref[open:], r)
	if !balanced {
		// keep whatever text is there rather than dropping the supertype
		if arg := normalizeTypeText(inner); arg != "" {
			return symbols.Supertype{Name: name, TypeArguments: []string{arg}}
		}
		return symbols.Supertype{Name: name}
	}

	var args []string
	for _, part := range splitTopLevel(inner, ',', r) {
		if arg := normalizeTypeText(part); arg != "" {
			args = append(args, arg)
		}
	}
	return symbols.Supertype{Name: name, TypeArguments: args}
}

// splitInheritance cuts a declaration at the first top-level inheritance
// keyword. The head keeps the symbol's own name and parameter list; the
// tail is the inheritance clause with the first keyword consumed (later
// keywords stay in place for clause splitting).
func splitInheritance(decl string, r languageRules) (head, tail string) {
	cut, width := firstInheritKeyword(decl, 0, r)
	if cut < 0 {
		return decl, ""
	}
	return strings.TrimSpace(decl[:cut]), strings.TrimSpace(decl[cut+width:])
}

// parseSupertypeClause splits the inheritance tail into individual
// supertype references. Later keywords (implements after extends) only
// separate clauses; all references land in one declaration-ordered list.
func parseSupertypeClause(tail string, r languageRules) []symbols.Supertype {
	if tail == "" {
		return nil
	}

	var supers []symbols.Supertype
	for tail != "" {
		clause := tail
		if cut, width := firstInheritKeyword(tail, 0, r); cut >= 0 {
			clause, tail = tail[:cut], strings.TrimSpace(tail[cut+width:])
		} else {
			tail = ""
		}
		for _, ref := range splitTopLevel(clause, ',', r) {
			ref = strings.TrimSpace(ref)
			if ref == "" {
				continue
			}
			supers = append(supers, parseTypeRef(ref, r))
		}
	}
	return supers
}

// parseTypeParams extracts the names declared in the first top-level
// generic group of the head, e.g. <X, Y> or [T any].
func parseTypeParams(head string, r languageRules) []string {
	open := indexTopLevelByte(head, r.openDelim, r)
	if open < 0 {
		return nil
	}
	inner, balanced := innerGroup(head[open:], r)
	if !balanced {
		if name := paramName(inner, r); name != "" {
			return []string{name}
		}
		return nil
	}

	var params []string
	for _, part := range splitTopLevel(inner, ',', r) {
		if name := paramName(part, r); name != "" {
			params = append(params, name)
		}
	}
	return params
}

// parseParenBases reads Python-style base lists: class Foo(Base, Mixin).
// Keyword arguments (metaclass=ABCMeta) are configuration, not bases.
func parseParenBases(head string, r languageRules) []symbols.Supertype {
	open := strings.IndexByte(head, '(')
	if open < 0 {
		return nil
	}
	inner := head[open+1:]
	if end := strings.LastIndexByte(inner, ')'); end >= 0 {
		inner = inner[:end]
	}

	var supers []symbols.Supertype
	for _, ref := range splitTopLevel(inner, ',', r) {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.Contains(ref, "=") {
			continue
		}
		supers = append(supers, parseTypeRef(ref, r))
	}
	return supers
}

// paramName reduces one type-parameter entry to its bare name: the text
// left of any default value or bound, then either the leading or the
// trailing identifier depending on the language's parameter style.
func paramName(entry string, r languageRules) string {
	entry = strings.TrimSpace(entry)
	if cut := indexTopLevelByte(entry, '=', r); cut >= 0 {
		entry = strings.TrimSpace(entry[:cut])
	}
	for _, kw := range r.boundKeywords {
		if kw == ":" {
			if cut := loneColon(entry, r); cut >= 0 {
				entry = strings.TrimSpace(entry[:cut])
			}
			continue
		}
		if cut := indexTopLevelWord(entry, kw, r); cut >= 0 {
			entry = strings.TrimSpace(entry[:cut])
		}
	}

	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return ""
	}
	name := fields[len(fields)-1]
	if r.paramNameFirst {
		name = fields[0]
	}
	return strings.TrimLeft(name, ".")
}

// firstInheritKeyword locates the first top-level inheritance keyword at
// or after from, returning its index and width. A bare ":" keyword
// matches a lone colon (never the "::" scope operator).
func firstInheritKeyword(s string, from int, r languageRules) (int, int) {
	best, width := -1, 0
	for _, kw := range r.inheritKeywords {
		var idx int
		if kw == ":" {
			idx = loneColon(s[from:], r)
		} else {
			idx = indexTopLevelWord(s[from:], kw, r)
		}
		if idx < 0 {
			continue
		}
		idx += from
		if best < 0 || idx < best {
			best, width = idx, len(kw)
		}
	}
	return best, width
}

// loneColon finds a top-level ':' that is not part of '::'.
func loneColon(s string, r languageRules) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case r.openDelim, '(':
			depth++
		case r.closeDelim, ')':
			depth--
		case ':':
			if depth > 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] == ':' {
				i++
				continue
			}
			if i > 0 && s[i-1] == ':' {
				continue
			}
			return i
		}
	}
	return -1
}

// indexTopLevelWord finds a whole-word keyword occurrence at bracket
// depth zero.
func indexTopLevelWord(s, word string, r languageRules) int {
	depth := 0
	for i := 0; i+len(word) <= len(s); i++ {
		switch s[i] {
		case r.openDelim, '(':
			depth++
			continue
		case r.closeDelim, ')':
			depth--
			continue
		}
		if depth != 0 || !strings.HasPrefix(s[i:], word) {
			continue
		}
		beforeOK := i == 0 || s[i-1] == ' '
		afterOK := i+len(word) == len(s) || s[i+len(word)] == ' '
		if beforeOK && afterOK {
			return i
		}
	}
	return -1
}

// indexTopLevel finds a substring occurrence at bracket depth zero.
func indexTopLevel(s, sub string, r languageRules) int {
	depth := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		switch s[i] {
		case r.openDelim, '(':
			depth++
			continue
		case r.closeDelim, ')':
			depth--
			continue
		}
		if depth == 0 && strings.HasPrefix(s[i:], sub) {
			return i
		}
	}
	return -1
}

// indexTopLevelByte finds a byte occurrence at bracket depth zero,
// counting only parentheses (the byte may be the generic delimiter
// itself).
func indexTopLevelByte(s string, b byte, r languageRules) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '(' {
			depth++
			continue
		}
		if s[i] == ')' {
			depth--
			continue
		}
		if depth == 0 && s[i] == b {
			return i
		}
	}
	return -1
}

// innerGroup returns the text inside the bracket group that starts at
// s[0], and whether the group was balanced. Unbalanced input yields
// everything after the opening bracket.
func innerGroup(s string, r languageRules) (string, bool) {
	if len(s) == 0 || s[0] != r.openDelim {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case r.openDelim:
			depth++
		case r.closeDelim:
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return s[1:], false
}

// splitTopLevel splits s on sep at bracket depth zero, tracking both the
// generic delimiters and parentheses.
func splitTopLevel(s string, sep byte, r languageRules) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case r.openDelim, '(':
			depth++
		case r.closeDelim, ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// normalizeTypeText canonicalizes an opaque type-argument string:
// whitespace runs collapse to one space and every comma is followed by
// exactly one space, so Map<String,List<Y>> and Map<String, List<Y>>
// compare equal.
func normalizeTypeText(s string) string {
	s = collapseSpace(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && i > 0 && s[i-1] == ',' {
			continue
		}
		b.WriteByte(s[i])
		if s[i] == ',' {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// stripModifiers drops leading access/virtual modifiers from a supertype
// reference.
func stripModifiers(ref string, modifiers []string) string {
	for {
		trimmed := false
		for _, mod := range modifiers {
			if strings.HasPrefix(ref, mod+" ") {
				ref = strings.TrimSpace(ref[len(mod):])
				trimmed = true
			}
		}
		if !trimmed {
			return ref
		}
	}
}

// collapseSpace folds all whitespace runs (including newlines from
// multi-line declarations) into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
