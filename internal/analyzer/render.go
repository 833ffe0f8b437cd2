package analyzer

import (
	"fmt"
	"os"
	"strings"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// MarkdownSink renders the document as a human-readable outline. Path
// "-" (or empty) streams to stdout.
type MarkdownSink struct {
	Path string
}

func (s MarkdownSink) Write(doc *symbols.Document) error {
	out := RenderMarkdown(doc)
	if s.Path == "" || s.Path == "-" {
		_, err := os.Stdout.WriteString(out)
		return err
	}
	return writeFileAtomic(s.Path, []byte(out))
}

// RenderMarkdown produces a markdown outline of the document: one
// section per file with a nested symbol list, then warnings and the
// type hierarchy when present.
func RenderMarkdown(doc *symbols.Document) string {
	var b strings.Builder
	b.WriteString("# Symbol Inventory\n\n")
	fmt.Fprintf(&b, "- Language: %s\n", doc.Language)
	fmt.Fprintf(&b, "- Directory: %s\n", doc.Directory)
	fmt.Fprintf(&b, "- Symbols: %d\n", doc.Count())

	currentFile := ""
	for _, s := range doc.Symbols {
		if s.Location.File != currentFile {
			currentFile = s.Location.File
			fmt.Fprintf(&b, "\n## %s\n\n", currentFile)
		}
		renderSymbol(&b, s, 0)
	}

	if len(doc.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range doc.Warnings {
			fmt.Fprintf(&b, "- `%s`: %s\n", w.File, w.Message)
		}
	}

	if len(doc.Hierarchy) > 0 {
		b.WriteString("\n## Type Hierarchy\n\n")
		for _, entry := range doc.Hierarchy {
			if len(entry.Ancestors) == 0 {
				fmt.Fprintf(&b, "- %s\n", entry.Name)
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", entry.Name, strings.Join(entry.Ancestors, ", "))
		}
	}
	return b.String()
}

func renderSymbol(b *strings.Builder, s *symbols.Symbol, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s- **%s** `%s`", indent, s.Name, s.Kind)
	if len(s.TypeParameters) > 0 {
		fmt.Fprintf(b, " <%s>", strings.Join(s.TypeParameters, ", "))
	}
	if len(s.Supertypes) > 0 {
		names := make([]string, len(s.Supertypes))
		for i, super := range s.Supertypes {
			names[i] = formatSupertype(super)
		}
		fmt.Fprintf(b, " : %s", strings.Join(names, ", "))
	}
	if s.Definition != nil {
		fmt.Fprintf(b, " (defined in %s)", s.Definition.File)
	}
	b.WriteString("\n")
	if first := firstDocLine(s.Documentation); first != "" {
		fmt.Fprintf(b, "%s  %s\n", indent, first)
	}
	for _, child := range s.Children {
		renderSymbol(b, child, depth+1)
	}
}

// formatSupertype reassembles a display form of a parsed supertype.
func formatSupertype(s symbols.Supertype) string {
	if len(s.TypeArguments) == 0 {
		return s.Name
	}
	return s.Name + "<" + strings.Join(s.TypeArguments, ", ") + ">"
}

// firstDocLine returns the first non-empty line of a documentation
// block, the only part the outline has room for.
func firstDocLine(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
