package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/project-prism/internal/lsp"
	"github.com/mvp-joe/project-prism/internal/symbols"
)

// maxCachedSupertypes bounds the per-language supertype memo. Headers
// included by many files resolve the same types over and over; one
// request per distinct type is enough.
const maxCachedSupertypes = 8192

// extractor turns one language's raw server responses into enriched
// Symbol trees. One extractor serves every file of its language within a
// run; the supertype memo is shared so repeated types cost one request.
type extractor struct {
	dispatcher *lsp.Dispatcher
	config     lsp.ServerConfig
	rules      languageRules
	source     *sourceReader
	rootDir    string
	logger     *slog.Logger

	superMemo otter.Cache[string, []symbols.Supertype]
}

func newExtractor(dispatcher *lsp.Dispatcher, cfg lsp.ServerConfig, source *sourceReader, rootDir string, logger *slog.Logger) (*extractor, error) {
	memo, err := otter.MustBuilder[string, []symbols.Supertype](maxCachedSupertypes).Build()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &extractor{
		dispatcher: dispatcher,
		config:     cfg,
		rules:      rulesFor(cfg.Language),
		source:     source,
		rootDir:    rootDir,
		logger:     logger.With("language", cfg.Language),
		superMemo:  memo,
	}, nil
}

func (e *extractor) Close() {
	e.superMemo.Close()
}

// ExtractFile requests a file's document symbols and builds its enriched
// Symbol trees: previews and documentation from source text, type
// parameters and supertypes from declaration parsing, server-resolved
// supertypes where the type hierarchy capability allows, and definition
// links for declarations living in header files. The trees come back
// unfiltered; structural cleanup is the normalizer's job.
func (e *extractor) ExtractFile(ctx context.Context, relPath string) ([]*symbols.Symbol, error) {
	lines, err := e.source.Lines(relPath)
	if err != nil {
		return nil, &FileError{File: relPath, Err: err}
	}
	content, err := e.source.Content(relPath)
	if err != nil {
		return nil, &FileError{File: relPath, Err: err}
	}

	absPath := filepath.Join(e.rootDir, filepath.FromSlash(relPath))
	result, err := e.dispatcher.DocumentSymbols(ctx, absPath, e.config.Language, content)
	if err != nil {
		return nil, err
	}

	conv := &conversion{extractor: e, file: relPath, lines: lines}
	var roots []*symbols.Symbol
	switch {
	case result.Symbols != nil:
		roots = make([]*symbols.Symbol, 0, len(result.Symbols))
		for _, raw := range result.Symbols {
			roots = append(roots, conv.fromDocumentSymbol(raw))
		}
	case result.Flat != nil:
		roots = conv.fromSymbolInformation(result.Flat)
	}

	for _, root := range roots {
		root.Walk(func(s *symbols.Symbol) {
			e.enrich(ctx, conv, s, lines)
		})
	}
	return roots, nil
}

// conversion carries the per-file state of one extraction: the selection
// position of every converted symbol, needed later for the positional
// hierarchy and definition requests but absent from the output model.
type conversion struct {
	extractor  *extractor
	file       string
	lines      []string
	selections map[*symbols.Symbol]lsp.Position
}

func (c *conversion) selectionOf(s *symbols.Symbol) lsp.Position {
	if pos, ok := c.selections[s]; ok {
		return pos
	}
	return lsp.Position{Line: s.Location.Range.Start.Line, Character: s.Location.Range.Start.Character}
}

func (c *conversion) remember(s *symbols.Symbol, pos lsp.Position) {
	if c.selections == nil {
		c.selections = make(map[*symbols.Symbol]lsp.Position)
	}
	c.selections[s] = pos
}

func (c *conversion) fromDocumentSymbol(raw lsp.DocumentSymbol) *symbols.Symbol {
	rng := fromLSPRange(raw.Range)
	s := &symbols.Symbol{
		Name:     raw.Name,
		Kind:     c.extractor.rules.mapKind(raw.Kind),
		Location: symbols.Location{File: c.file, Range: rng},
		Preview:  previewFor(c.lines, rng),
	}
	c.remember(s, raw.SelectionRange.Start)
	for _, child := range raw.Children {
		s.Children = append(s.Children, c.fromDocumentSymbol(child))
	}
	return s
}

// fromSymbolInformation nests a flat response by range containment so
// both response shapes feed one pipeline. Symbols are ordered outermost
// first; each one becomes a child of the nearest open symbol whose range
// contains it.
func (c *conversion) fromSymbolInformation(flat []lsp.SymbolInformation) []*symbols.Symbol {
	converted := make([]*symbols.Symbol, 0, len(flat))
	for _, info := range flat {
		rng := fromLSPRange(info.Location.Range)
		s := &symbols.Symbol{
			Name:     info.Name,
			Kind:     c.extractor.rules.mapKind(info.Kind),
			Location: symbols.Location{File: c.file, Range: rng},
			Preview:  previewFor(c.lines, rng),
		}
		c.remember(s, info.Location.Range.Start)
		converted = append(converted, s)
	}

	sort.SliceStable(converted, func(i, j int) bool {
		ri, rj := converted[i].Location.Range, converted[j].Location.Range
		if ri.Start != rj.Start {
			return ri.Start.Before(rj.Start)
		}
		// same start: wider range first so the container opens before
		// its contents
		return rj.End.Before(ri.End)
	})

	var roots []*symbols.Symbol
	var open []*symbols.Symbol
	for _, s := range converted {
		for len(open) > 0 && !open[len(open)-1].Location.Range.Contains(s.Location.Range) {
			open = open[:len(open)-1]
		}
		if len(open) == 0 {
			roots = append(roots, s)
		} else {
			parent := open[len(open)-1]
			parent.Children = append(parent.Children, s)
		}
		open = append(open, s)
	}
	return roots
}

// enrich fills one symbol's documentation, type parameters, supertypes,
// and definition link in place.
func (e *extractor) enrich(ctx context.Context, conv *conversion, s *symbols.Symbol, lines []string) {
	if doc := attachComment(lines, s.Location.Range.Start.Line, e.rules); doc != "" {
		s.Documentation = doc
	}

	info := parseDeclaration(s.Preview, s.Kind, e.rules)
	s.TypeParameters = info.TypeParameters
	s.Supertypes = info.Supertypes

	if s.Kind.IsTypeLike() {
		if supers, ok := e.resolveSupertypes(ctx, conv, s); ok {
			s.Supertypes = supers
		}
	}
	if conv.extractor.config.IsHeaderFile(conv.file) && definitionCandidate(s.Kind) {
		e.linkDefinition(ctx, conv, s)
	}
}

// resolveSupertypes asks the server for a type's declared parents. The
// second return is false when the lookup could not improve on the
// declaration parse: capability missing, request failed, or the server
// knows no parents while the declaration text does.
func (e *extractor) resolveSupertypes(ctx context.Context, conv *conversion, s *symbols.Symbol) ([]symbols.Supertype, bool) {
	if !e.dispatcher.Capabilities().HasTypeHierarchy() {
		return nil, false
	}

	absPath := filepath.Join(e.rootDir, filepath.FromSlash(conv.file))
	items, err := e.dispatcher.PrepareTypeHierarchy(ctx, absPath, conv.selectionOf(s))
	if err != nil {
		if !errors.Is(err, lsp.ErrUnsupportedCapability) {
			e.logger.Debug("type hierarchy prepare failed", "file", conv.file, "symbol", s.Name, "error", err)
		}
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}

	item := items[0]
	key := supertypeMemoKey(item)
	if supers, ok := e.superMemo.Get(key); ok {
		return supers, len(supers) > 0
	}

	parents, err := e.dispatcher.Supertypes(ctx, item)
	if err != nil {
		if !errors.Is(err, lsp.ErrUnsupportedCapability) {
			e.logger.Debug("supertypes request failed", "file", conv.file, "symbol", s.Name, "error", err)
		}
		return nil, false
	}

	// Parent names still carry raw generic syntax; the declaration
	// tokenizer splits them into bare name plus opaque arguments.
	supers := make([]symbols.Supertype, 0, len(parents))
	for _, parent := range parents {
		ref := parent.Name
		if parent.Detail != "" && strings.ContainsRune(parent.Detail, rune(e.rules.openDelim)) {
			ref = parent.Detail
		}
		supers = append(supers, parseTypeRef(ref, e.rules))
	}
	e.superMemo.Set(key, supers)
	return supers, len(supers) > 0
}

func supertypeMemoKey(item lsp.TypeHierarchyItem) string {
	return fmt.Sprintf("%s#%d:%d#%s", item.URI, item.SelectionRange.Start.Line, item.SelectionRange.Start.Character, item.Name)
}

// definitionCandidate limits definition probing to declarations whose
// body conventionally lives elsewhere.
func definitionCandidate(kind symbols.Kind) bool {
	switch kind {
	case symbols.KindFunction, symbols.KindMethod, symbols.KindConstructor, symbols.KindOperator:
		return true
	}
	return false
}

// linkDefinition points a header declaration at its implementation. Only
// workspace-internal targets distinct from the declaration itself count;
// anything else leaves the symbol as a plain declaration.
func (e *extractor) linkDefinition(ctx context.Context, conv *conversion, s *symbols.Symbol) {
	absPath := filepath.Join(e.rootDir, filepath.FromSlash(conv.file))
	locs, err := e.dispatcher.Definition(ctx, absPath, conv.selectionOf(s))
	if err != nil {
		if !errors.Is(err, lsp.ErrUnsupportedCapability) {
			e.logger.Debug("definition request failed", "file", conv.file, "symbol", s.Name, "error", err)
		}
		return
	}

	for _, loc := range locs {
		target, ok := e.workspaceRelative(lsp.URIToPath(loc.URI))
		if !ok {
			continue
		}
		rng := fromLSPRange(loc.Range)
		if target == conv.file && s.Location.Range.Contains(rng) {
			// the declaration answering for itself
			continue
		}
		def := &symbols.Definition{File: target, Range: rng}
		if lines, err := e.source.Lines(target); err == nil {
			def.Preview = previewFor(lines, rng)
		}
		s.Definition = def
		return
	}
}

// workspaceRelative rewrites an absolute path to root-relative slash
// form, rejecting anything outside the analyzed tree (system headers,
// toolchain sources).
func (e *extractor) workspaceRelative(path string) (string, bool) {
	rel, err := filepath.Rel(e.rootDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func fromLSPRange(r lsp.Range) symbols.Range {
	return symbols.Range{
		Start: symbols.Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   symbols.Position{Line: r.End.Line, Character: r.End.Character},
	}
}
