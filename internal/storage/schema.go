package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateSchema creates all tables and indexes for a symbol database.
// Uses a transaction for atomicity - all schema creation succeeds or fails together.
//
// Schema includes:
//   - runs: one row per analysis run (directory, languages, timestamp)
//   - symbols: the flattened symbol tree, parent_id encodes nesting
//   - type_parameters, supertypes, definitions: per-symbol enrichment
//   - warnings: per-file failures that downgraded the run
//   - hierarchy: resolved ancestor chains for type-like symbols
//   - metadata: schema version and last-run bookkeeping
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	// Enable foreign keys (must be set for each connection)
	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create all tables in dependency order
	tables := []struct {
		name string
		ddl  string
	}{
		{"runs", createRunsTable},
		{"symbols", createSymbolsTable},
		{"type_parameters", createTypeParametersTable},
		{"supertypes", createSupertypesTable},
		{"definitions", createDefinitionsTable},
		{"warnings", createWarningsTable},
		{"hierarchy", createHierarchyTable},
		{"metadata", createMetadataTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	// Create all indexes
	indexes := getAllIndexes()
	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	// Bootstrap metadata
	now := time.Now().UTC().Format(time.RFC3339)
	bootstrapSQL := `
		INSERT INTO metadata (key, value, updated_at) VALUES
			('schema_version', '1.0', ?),
			('last_run_id', '', ?),
			('last_run_at', '', ?)
	`
	if _, err := tx.Exec(bootstrapSQL, now, now, now); err != nil {
		return fmt.Errorf("failed to bootstrap metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	return nil
}

// GetSchemaVersion retrieves the schema version from metadata.
// Returns "0" if the table doesn't exist (new database).
func GetSchemaVersion(db *sql.DB) (string, error) {
	// First check if metadata table exists
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil // New database
	}

	// Table exists, query for version
	var version string
	query := "SELECT value FROM metadata WHERE key = 'schema_version'"
	err = db.QueryRow(query).Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

// Table DDL constants

const createRunsTable = `
CREATE TABLE runs (
    run_id TEXT PRIMARY KEY,                     -- UUID assigned when the run starts
    directory TEXT NOT NULL,                     -- Absolute path of the analyzed root
    language TEXT NOT NULL,                      -- Comma-joined language identifiers
    created_at TEXT NOT NULL                     -- ISO 8601
)
`

const createSymbolsTable = `
CREATE TABLE symbols (
    symbol_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    parent_id INTEGER,                           -- NULL for top-level symbols
    position INTEGER NOT NULL,                   -- 0-indexed order among siblings
    name TEXT NOT NULL,
    kind TEXT NOT NULL,                          -- class, interface, function, etc.
    file_path TEXT NOT NULL,                     -- Relative path, forward slashes
    start_line INTEGER NOT NULL,                 -- 0-indexed, as reported by the server
    start_character INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    end_character INTEGER NOT NULL,
    preview TEXT NOT NULL DEFAULT '',            -- Trimmed first declaration line
    documentation TEXT NOT NULL DEFAULT '',      -- Attached comment text
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
    FOREIGN KEY (parent_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
)
`

const createTypeParametersTable = `
CREATE TABLE type_parameters (
    symbol_id INTEGER NOT NULL,
    position INTEGER NOT NULL,                   -- 0-indexed declaration order
    name TEXT NOT NULL,
    PRIMARY KEY (symbol_id, position),
    FOREIGN KEY (symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
)
`

const createSupertypesTable = `
CREATE TABLE supertypes (
    symbol_id INTEGER NOT NULL,
    position INTEGER NOT NULL,                   -- 0-indexed declaration order
    name TEXT NOT NULL,                          -- Base name without type arguments
    type_arguments TEXT NOT NULL DEFAULT '[]',   -- JSON array of raw argument strings
    PRIMARY KEY (symbol_id, position),
    FOREIGN KEY (symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
)
`

const createDefinitionsTable = `
CREATE TABLE definitions (
    symbol_id INTEGER PRIMARY KEY,               -- One definition per symbol
    file_path TEXT NOT NULL,                     -- Relative path of the defining file
    start_line INTEGER NOT NULL,
    start_character INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    end_character INTEGER NOT NULL,
    preview TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (symbol_id) REFERENCES symbols(symbol_id) ON DELETE CASCADE
)
`

const createWarningsTable = `
CREATE TABLE warnings (
    warning_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    file_path TEXT NOT NULL,                     -- File whose analysis degraded
    message TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

const createHierarchyTable = `
CREATE TABLE hierarchy (
    run_id TEXT NOT NULL,
    type_name TEXT NOT NULL,
    ancestors TEXT NOT NULL,                     -- JSON array, breadth-first order
    PRIMARY KEY (run_id, type_name),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

const createMetadataTable = `
CREATE TABLE metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

// getAllIndexes returns all index creation statements.
func getAllIndexes() []string {
	return []string{
		// symbols table indexes
		"CREATE INDEX idx_symbols_run_id ON symbols(run_id)",
		"CREATE INDEX idx_symbols_parent_id ON symbols(parent_id)",
		"CREATE INDEX idx_symbols_file_path ON symbols(file_path)",
		"CREATE INDEX idx_symbols_name ON symbols(name)",
		"CREATE INDEX idx_symbols_kind ON symbols(kind)",

		// warnings table indexes
		"CREATE INDEX idx_warnings_run_id ON warnings(run_id)",

		// hierarchy table indexes
		"CREATE INDEX idx_hierarchy_run_id ON hierarchy(run_id)",
	}
}
