package storage

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a fully configured in-memory SQLite database for testing.
//
// The database includes:
//   - Foreign key constraints enabled (required for cascade deletes)
//   - Full schema created (all tables and indexes)
//   - Automatic cleanup registered with t.Cleanup()
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    db := storage.NewTestDB(t)
//	    // ... test code ...
//	    // No need to close - t.Cleanup() handles it
//	}
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Enable foreign key constraints (required for cascade deletes)
	// SQLite disables foreign keys by default for backward compatibility
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	err = CreateSchema(db)
	require.NoError(t, err)

	return db
}

// NewTestDBMinimal creates an in-memory SQLite database without schema.
//
// Use this when testing schema creation itself, or when the test needs
// full control over database structure.
func NewTestDBMinimal(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Enable foreign key constraints
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	// Do NOT create schema - caller is responsible

	return db
}
