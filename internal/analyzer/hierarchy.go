package analyzer

import (
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// BuildHierarchy flattens the document's supertype edges into per-type
// ancestor chains. Every type-like symbol that declares at least one
// supertype gets an entry; ancestors outside the analyzed tree appear by
// name only. Output order is deterministic regardless of map iteration.
func BuildHierarchy(doc *symbols.Document) []symbols.HierarchyEntry {
	g := graph.New(graph.StringHash, graph.Directed())
	declared := make(map[string]bool)

	for _, root := range doc.Symbols {
		root.Walk(func(s *symbols.Symbol) {
			if !s.Kind.IsTypeLike() || len(s.Supertypes) == 0 {
				return
			}
			declared[s.Name] = true
			_ = g.AddVertex(s.Name)
			for _, super := range s.Supertypes {
				_ = g.AddVertex(super.Name)
				// Duplicate edges happen when companions merged or a
				// type restates a parent; both are harmless here.
				_ = g.AddEdge(s.Name, super.Name)
			}
		})
	}
	if len(declared) == 0 {
		return nil
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]symbols.HierarchyEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, symbols.HierarchyEntry{
			Name:      name,
			Ancestors: ancestorsOf(name, adjacency),
		})
	}
	return entries
}

// ancestorsOf walks supertype edges breadth-first: direct parents first,
// then theirs, alphabetical within a level. The visited set keeps cyclic
// inheritance in malformed sources from looping.
func ancestorsOf(name string, adjacency map[string]map[string]graph.Edge[string]) []string {
	var ancestors []string
	seen := map[string]bool{name: true}
	frontier := []string{name}
	for len(frontier) > 0 {
		var next []string
		for _, current := range frontier {
			parents := make([]string, 0, len(adjacency[current]))
			for parent := range adjacency[current] {
				parents = append(parents, parent)
			}
			sort.Strings(parents)
			for _, parent := range parents {
				if seen[parent] {
					continue
				}
				seen[parent] = true
				ancestors = append(ancestors, parent)
				next = append(next, parent)
			}
		}
		frontier = next
	}
	return ancestors
}
