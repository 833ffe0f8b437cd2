package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// ErrNoRuns indicates the database holds no completed analysis run.
var ErrNoRuns = errors.New("no analysis runs stored")

// Reader loads stored documents from a SQLite symbol database.
// Opens the database in read-only mode for safety and concurrent access.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite symbol database for reading.
// Uses read-only mode to prevent accidental modifications; the database
// must already exist.
func NewReader(dbPath string) (*Reader, error) {
	// Open in read-only mode
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The open is lazy; force a connection so a missing or unreadable
	// database fails here rather than on the first query.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Reader{db: db}, nil
}

// RunInfo describes one stored analysis run.
type RunInfo struct {
	ID        string
	Directory string
	Language  string
	CreatedAt time.Time
}

// LatestRun returns the most recently stored run.
// Returns ErrNoRuns for a fresh database.
func (r *Reader) LatestRun() (*RunInfo, error) {
	var info RunInfo
	var createdAt string
	err := sq.Select("run_id", "directory", "language", "created_at").
		From("runs").
		OrderBy("created_at DESC").
		Limit(1).
		RunWith(r.db).
		QueryRow().
		Scan(&info.ID, &info.Directory, &info.Language, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	info.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
	}
	return &info, nil
}

// ReadDocument reconstructs the full document for a run: the symbol tree
// with all enrichment, warnings, and the type hierarchy.
func (r *Reader) ReadDocument(runID string) (*symbols.Document, error) {
	doc := &symbols.Document{
		RunID:   runID,
		Symbols: []*symbols.Symbol{},
	}

	err := sq.Select("directory", "language").
		From("runs").
		Where(sq.Eq{"run_id": runID}).
		RunWith(r.db).
		QueryRow().
		Scan(&doc.Directory, &doc.Language)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	byID, err := r.readSymbols(runID, doc)
	if err != nil {
		return nil, err
	}
	if err := r.readTypeParameters(runID, byID); err != nil {
		return nil, err
	}
	if err := r.readSupertypes(runID, byID); err != nil {
		return nil, err
	}
	if err := r.readDefinitions(runID, byID); err != nil {
		return nil, err
	}
	if err := r.readWarnings(runID, doc); err != nil {
		return nil, err
	}
	if err := r.readHierarchy(runID, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// readSymbols loads the symbol rows and rebuilds the tree. Rows were
// inserted in depth-first source order, so scanning by symbol_id visits
// every parent before its children and siblings in position order.
func (r *Reader) readSymbols(runID string, doc *symbols.Document) (map[int64]*symbols.Symbol, error) {
	rows, err := sq.Select("symbol_id", "parent_id", "name", "kind", "file_path",
		"start_line", "start_character", "end_line", "end_character",
		"preview", "documentation").
		From("symbols").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("symbol_id").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*symbols.Symbol)
	for rows.Next() {
		var (
			id       int64
			parentID sql.NullInt64
			sym      symbols.Symbol
			kind     string
		)
		err := rows.Scan(&id, &parentID, &sym.Name, &kind, &sym.Location.File,
			&sym.Location.Range.Start.Line, &sym.Location.Range.Start.Character,
			&sym.Location.Range.End.Line, &sym.Location.Range.End.Character,
			&sym.Preview, &sym.Documentation)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		sym.Kind = symbols.Kind(kind)
		byID[id] = &sym

		if parentID.Valid {
			parent, ok := byID[parentID.Int64]
			if !ok {
				return nil, fmt.Errorf("symbol %d references missing parent %d", id, parentID.Int64)
			}
			parent.Children = append(parent.Children, &sym)
		} else {
			doc.Symbols = append(doc.Symbols, &sym)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return byID, nil
}

func (r *Reader) readTypeParameters(runID string, byID map[int64]*symbols.Symbol) error {
	rows, err := sq.Select("tp.symbol_id", "tp.name").
		From("type_parameters tp").
		Join("symbols s ON s.symbol_id = tp.symbol_id").
		Where(sq.Eq{"s.run_id": runID}).
		OrderBy("tp.symbol_id", "tp.position").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query type parameters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan type parameter: %w", err)
		}
		if sym, ok := byID[id]; ok {
			sym.TypeParameters = append(sym.TypeParameters, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating type parameters: %w", err)
	}
	return nil
}

func (r *Reader) readSupertypes(runID string, byID map[int64]*symbols.Symbol) error {
	rows, err := sq.Select("st.symbol_id", "st.name", "st.type_arguments").
		From("supertypes st").
		Join("symbols s ON s.symbol_id = st.symbol_id").
		Where(sq.Eq{"s.run_id": runID}).
		OrderBy("st.symbol_id", "st.position").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query supertypes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name, rawArgs string
		if err := rows.Scan(&id, &name, &rawArgs); err != nil {
			return fmt.Errorf("failed to scan supertype: %w", err)
		}
		var args []string
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Errorf("failed to decode type arguments of %s: %w", name, err)
		}
		if len(args) == 0 {
			args = nil
		}
		if sym, ok := byID[id]; ok {
			sym.Supertypes = append(sym.Supertypes, symbols.Supertype{Name: name, TypeArguments: args})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating supertypes: %w", err)
	}
	return nil
}

func (r *Reader) readDefinitions(runID string, byID map[int64]*symbols.Symbol) error {
	rows, err := sq.Select("d.symbol_id", "d.file_path",
		"d.start_line", "d.start_character", "d.end_line", "d.end_character",
		"d.preview").
		From("definitions d").
		Join("symbols s ON s.symbol_id = d.symbol_id").
		Where(sq.Eq{"s.run_id": runID}).
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var def symbols.Definition
		err := rows.Scan(&id, &def.File,
			&def.Range.Start.Line, &def.Range.Start.Character,
			&def.Range.End.Line, &def.Range.End.Character,
			&def.Preview)
		if err != nil {
			return fmt.Errorf("failed to scan definition: %w", err)
		}
		if sym, ok := byID[id]; ok {
			sym.Definition = &def
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating definitions: %w", err)
	}
	return nil
}

func (r *Reader) readWarnings(runID string, doc *symbols.Document) error {
	rows, err := sq.Select("file_path", "message").
		From("warnings").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("warning_id").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w symbols.Warning
		if err := rows.Scan(&w.File, &w.Message); err != nil {
			return fmt.Errorf("failed to scan warning: %w", err)
		}
		doc.Warnings = append(doc.Warnings, w)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating warnings: %w", err)
	}
	return nil
}

func (r *Reader) readHierarchy(runID string, doc *symbols.Document) error {
	rows, err := sq.Select("type_name", "ancestors").
		From("hierarchy").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("type_name").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query hierarchy: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry symbols.HierarchyEntry
		var rawAncestors string
		if err := rows.Scan(&entry.Name, &rawAncestors); err != nil {
			return fmt.Errorf("failed to scan hierarchy entry: %w", err)
		}
		if err := json.Unmarshal([]byte(rawAncestors), &entry.Ancestors); err != nil {
			return fmt.Errorf("failed to decode ancestors of %s: %w", entry.Name, err)
		}
		doc.Hierarchy = append(doc.Hierarchy, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating hierarchy: %w", err)
	}
	return nil
}
