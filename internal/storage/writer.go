package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/project-prism/internal/symbols"
)

// DocumentWriter persists analysis documents to a SQLite database.
// Uses transactions for atomic updates so readers never observe a
// partially written run.
type DocumentWriter struct {
	db *sql.DB
}

// NewDocumentWriter opens or creates a SQLite database for symbol storage.
// Enables foreign keys and creates schema if needed.
func NewDocumentWriter(dbPath string) (*DocumentWriter, error) {
	// The default output lives under .prism, which may not exist yet.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys (required for FK constraints)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create schema if not exists
	version, err := GetSchemaVersion(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}

	if version == "0" {
		if err := CreateSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &DocumentWriter{db: db}, nil
}

// WriteDocument performs a full replace of the stored inventory.
// Clears any previous runs, then writes the document's run row, symbol
// tree, warnings, and hierarchy. All operations are atomic - either the
// whole document is written or none of it.
func (w *DocumentWriter) WriteDocument(doc *symbols.Document) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	// Clear previous runs; cascading deletes take dependent rows with them.
	if _, err := sq.Delete("runs").RunWith(tx).Exec(); err != nil {
		return fmt.Errorf("failed to clear previous runs: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = sq.Insert("runs").
		Columns("run_id", "directory", "language", "created_at").
		Values(doc.RunID, doc.Directory, doc.Language, now).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, sym := range doc.Symbols {
		if err := insertSymbol(tx, doc.RunID, nil, i, sym); err != nil {
			return err
		}
	}

	for _, warning := range doc.Warnings {
		_, err := sq.Insert("warnings").
			Columns("run_id", "file_path", "message").
			Values(doc.RunID, warning.File, warning.Message).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert warning for %s: %w", warning.File, err)
		}
	}

	for _, entry := range doc.Hierarchy {
		ancestors, err := marshalStrings(entry.Ancestors)
		if err != nil {
			return fmt.Errorf("failed to encode ancestors of %s: %w", entry.Name, err)
		}
		_, err = sq.Insert("hierarchy").
			Columns("run_id", "type_name", "ancestors").
			Values(doc.RunID, entry.Name, ancestors).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert hierarchy entry %s: %w", entry.Name, err)
		}
	}

	if err := updateMetadata(tx, "last_run_id", doc.RunID, now); err != nil {
		return err
	}
	if err := updateMetadata(tx, "last_run_at", now, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
// Should be called when done writing documents.
func (w *DocumentWriter) Close() error {
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// insertSymbol writes one symbol plus its enrichment rows, then recurses
// into children. parentID is nil for top-level symbols. Rows are inserted
// in depth-first source order, so symbol_id order reproduces the tree.
func insertSymbol(tx *sql.Tx, runID string, parentID interface{}, position int, sym *symbols.Symbol) error {
	res, err := sq.Insert("symbols").
		Columns("run_id", "parent_id", "position", "name", "kind", "file_path",
			"start_line", "start_character", "end_line", "end_character",
			"preview", "documentation").
		Values(
			runID,
			parentID,
			position,
			sym.Name,
			string(sym.Kind),
			sym.Location.File,
			sym.Location.Range.Start.Line,
			sym.Location.Range.Start.Character,
			sym.Location.Range.End.Line,
			sym.Location.Range.End.Character,
			sym.Preview,
			sym.Documentation,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert symbol %s: %w", sym.Name, err)
	}

	symbolID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read id of symbol %s: %w", sym.Name, err)
	}

	for i, name := range sym.TypeParameters {
		_, err := sq.Insert("type_parameters").
			Columns("symbol_id", "position", "name").
			Values(symbolID, i, name).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert type parameter %s of %s: %w", name, sym.Name, err)
		}
	}

	for i, st := range sym.Supertypes {
		args, err := marshalStrings(st.TypeArguments)
		if err != nil {
			return fmt.Errorf("failed to encode type arguments of %s: %w", st.Name, err)
		}
		_, err = sq.Insert("supertypes").
			Columns("symbol_id", "position", "name", "type_arguments").
			Values(symbolID, i, st.Name, args).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert supertype %s of %s: %w", st.Name, sym.Name, err)
		}
	}

	if def := sym.Definition; def != nil {
		_, err := sq.Insert("definitions").
			Columns("symbol_id", "file_path",
				"start_line", "start_character", "end_line", "end_character",
				"preview").
			Values(symbolID, def.File,
				def.Range.Start.Line, def.Range.Start.Character,
				def.Range.End.Line, def.Range.End.Character,
				def.Preview).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert definition of %s: %w", sym.Name, err)
		}
	}

	for i, child := range sym.Children {
		if err := insertSymbol(tx, runID, symbolID, i, child); err != nil {
			return err
		}
	}

	return nil
}

// updateMetadata upserts one metadata key inside the document transaction.
func updateMetadata(tx *sql.Tx, key, value, now string) error {
	query := `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := tx.Exec(query, key, value, now); err != nil {
		return fmt.Errorf("failed to update metadata %s: %w", key, err)
	}
	return nil
}

// marshalStrings encodes a string slice as a JSON array. A nil slice
// encodes as [] rather than null so readers can always unmarshal into
// a slice.
func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Sink writes each document to the SQLite database at Path, creating the
// database on first use. It satisfies the analyzer's sink contract, so
// "sqlite" sits alongside the JSON and Markdown output formats.
type Sink struct {
	Path string
}

// Write replaces the stored inventory with doc.
func (s Sink) Write(doc *symbols.Document) error {
	w, err := NewDocumentWriter(s.Path)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.WriteDocument(doc)
}
