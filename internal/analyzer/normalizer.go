package analyzer

import (
	"strings"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// normalizer applies the per-language structural cleanup: friend
// filtering, forward-declaration removal, and companion-declaration
// merging. It runs after extraction and enrichment, so it sees fully
// populated symbols and may delete or combine them.
type normalizer struct {
	rules languageRules
}

// Normalize rewrites one file's symbol trees in place and returns the
// cleaned top-level list, sorted into source order at every level.
func (n normalizer) Normalize(roots []*symbols.Symbol) []*symbols.Symbol {
	roots = n.normalizeList(roots)
	symbols.SortTree(roots)
	return roots
}

func (n normalizer) normalizeList(list []*symbols.Symbol) []*symbols.Symbol {
	for _, s := range list {
		s.Children = n.normalizeList(s.Children)
		n.foldAnonymousOnlyChild(s)
	}
	list = n.filterFriends(list)
	list = n.removeForwardDecls(list)
	list = n.mergeCompanions(list)
	return list
}

func (n normalizer) filterFriends(list []*symbols.Symbol) []*symbols.Symbol {
	if len(n.rules.friendPrefixes) == 0 {
		return list
	}
	kept := list[:0]
	for _, s := range list {
		if n.rules.isFriendDecl(s.Preview) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// removeForwardDecls drops bodyless type declarations. A pure forward
// declaration carries no information: the real definition contributes the
// symbol, and a file holding only forward declarations contributes
// nothing.
func (n normalizer) removeForwardDecls(list []*symbols.Symbol) []*symbols.Symbol {
	if len(n.rules.forwardDeclKeywords) == 0 {
		return list
	}
	kept := list[:0]
	for _, s := range list {
		if n.isForwardDecl(s) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func (n normalizer) isForwardDecl(s *symbols.Symbol) bool {
	if !s.Kind.IsTypeLike() || len(s.Children) > 0 {
		return false
	}
	decl := collapseSpace(s.Preview)
	decl = stripTemplatePrefix(decl, n.rules)
	if decl == "" || !strings.HasSuffix(decl, ";") || strings.Contains(decl, "{") || strings.Contains(decl, "=") {
		return false
	}
	for _, kw := range n.rules.forwardDeclKeywords {
		if strings.HasPrefix(decl, kw+" ") {
			return true
		}
	}
	return false
}

// stripTemplatePrefix removes a leading template<...> so C++ forward
// declarations of templates are recognized by their keyword.
func stripTemplatePrefix(decl string, r languageRules) string {
	if !strings.HasPrefix(decl, "template") {
		return decl
	}
	rest := strings.TrimSpace(strings.TrimPrefix(decl, "template"))
	if len(rest) == 0 || rest[0] != r.openDelim {
		return decl
	}
	inner, balanced := innerGroup(rest, r)
	if !balanced {
		return decl
	}
	return strings.TrimSpace(rest[len(inner)+2:])
}

// mergeCompanions combines an anonymous structural type with the alias
// declared alongside it into one symbol named after the alias. The two
// may appear in either order; each alias consumes its nearest anonymous
// sibling, and anything left unpaired stays as emitted.
func (n normalizer) mergeCompanions(list []*symbols.Symbol) []*symbols.Symbol {
	for i := 0; i < len(list); i++ {
		if !n.isAnonymous(list[i]) {
			continue
		}
		aliasIdx := n.nearestAlias(list, i)
		if aliasIdx < 0 {
			// unpaired anonymous type, leave it as emitted
			continue
		}
		merged := mergeCompanionPair(list[i], list[aliasIdx])

		lo, hi := i, aliasIdx
		if lo > hi {
			lo, hi = hi, lo
		}
		list[lo] = merged
		list = append(list[:hi], list[hi+1:]...)
		i = lo - 1
	}
	return list
}

func (n normalizer) isAnonymous(s *symbols.Symbol) bool {
	if !s.Kind.IsTypeLike() {
		return false
	}
	return s.Name == "" || n.rules.isAnonymousName(s.Name)
}

// nearestAlias picks the closest non-anonymous type-like sibling whose
// range contains the anonymous type or sits within one line of it.
func (n normalizer) nearestAlias(list []*symbols.Symbol, anonIdx int) int {
	anon := list[anonIdx].Location.Range
	best, bestDist := -1, 0
	for j, s := range list {
		if j == anonIdx || n.isAnonymous(s) || !s.Kind.IsTypeLike() {
			continue
		}
		r := s.Location.Range
		dist := -1
		switch {
		case r.Contains(anon):
			dist = 0
		case !r.Start.Before(anon.End): // alias after the anonymous type
			if d := r.Start.Line - anon.End.Line; d <= 1 {
				dist = d
			}
		case !anon.Start.Before(r.End): // alias before the anonymous type
			if d := anon.Start.Line - r.End.Line; d <= 1 {
				dist = d
			}
		}
		if dist < 0 {
			continue
		}
		if best < 0 || dist < bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

// mergeCompanionPair produces one symbol carrying the alias's name and
// the anonymous type's structural kind and members.
func mergeCompanionPair(anon, alias *symbols.Symbol) *symbols.Symbol {
	merged := &symbols.Symbol{
		Name: alias.Name,
		Kind: anon.Kind,
		Location: symbols.Location{
			File:  anon.Location.File,
			Range: unionRange(anon.Location.Range, alias.Location.Range),
		},
		Preview:        alias.Preview,
		Documentation:  alias.Documentation,
		TypeParameters: alias.TypeParameters,
		Supertypes:     alias.Supertypes,
		Children:       append(anon.Children, alias.Children...),
		Definition:     alias.Definition,
	}
	if merged.Preview == "" {
		merged.Preview = anon.Preview
	}
	if merged.Documentation == "" {
		merged.Documentation = anon.Documentation
	}
	if len(merged.TypeParameters) == 0 {
		merged.TypeParameters = anon.TypeParameters
	}
	if len(merged.Supertypes) == 0 {
		merged.Supertypes = anon.Supertypes
	}
	if merged.Definition == nil {
		merged.Definition = anon.Definition
	}
	return merged
}

// foldAnonymousOnlyChild flattens the nested form of a companion pair,
// where a server reports the anonymous type as the alias's only child.
func (n normalizer) foldAnonymousOnlyChild(s *symbols.Symbol) {
	if !s.Kind.IsTypeLike() || len(s.Children) != 1 {
		return
	}
	child := s.Children[0]
	if !n.isAnonymous(child) || !s.Location.Range.Contains(child.Location.Range) {
		return
	}
	s.Kind = child.Kind
	s.Children = child.Children
	if len(s.Supertypes) == 0 {
		s.Supertypes = child.Supertypes
	}
	if s.Documentation == "" {
		s.Documentation = child.Documentation
	}
}

func unionRange(a, b symbols.Range) symbols.Range {
	out := a
	if b.Start.Before(out.Start) {
		out.Start = b.Start
	}
	if out.End.Before(b.End) {
		out.End = b.End
	}
	return out
}
