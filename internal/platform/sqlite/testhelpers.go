package sqlite

import (
	"context"
	"database/sql"
	"testing"
)

// TestDB wraps a throwaway SQLite database with helpers for repository
// tests.
type TestDB struct {
	DB       *sql.DB
	Path     string // empty for in-memory
	TxRunner *TxRunner
}

// NewTestDBInMemory opens an in-memory database that closes itself when
// the test finishes.
func NewTestDBInMemory(t *testing.T) *TestDB {
	t.Helper()

	db, err := NewInMemoryDB(context.Background())
	if err != nil {
		t.Fatalf("create in-memory test DB: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return &TestDB{DB: db, Path: ":memory:", TxRunner: NewTxRunner(db)}
}

// NewTestDBFile opens a file-backed database that removes itself when
// the test finishes. Use when the test needs real durability behavior.
func NewTestDBFile(t *testing.T) *TestDB {
	t.Helper()

	db, path, err := NewTestDB(context.Background())
	if err != nil {
		t.Fatalf("create file test DB: %v", err)
	}

	t.Cleanup(func() {
		_ = CleanupTestDB(db, path)
	})

	return &TestDB{DB: db, Path: path, TxRunner: NewTxRunner(db)}
}

// Exec runs a statement and fails the test on error.
func (tdb *TestDB) Exec(t *testing.T, query string, args ...any) sql.Result {
	t.Helper()

	result, err := tdb.DB.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("execute query: %v", err)
	}
	return result
}

// QueryRow runs a single-row query.
func (tdb *TestDB) QueryRow(t *testing.T, query string, args ...any) *sql.Row {
	t.Helper()
	return tdb.DB.QueryRowContext(context.Background(), query, args...)
}

// MustSeed runs the given statements, failing the test on any error.
func (tdb *TestDB) MustSeed(t *testing.T, queries ...string) {
	t.Helper()

	for _, query := range queries {
		tdb.Exec(t, query)
	}
}

// CountRows returns the number of rows in a table.
func (tdb *TestDB) CountRows(t *testing.T, tableName string) int {
	t.Helper()

	var count int
	if err := tdb.QueryRow(t, "SELECT COUNT(*) FROM "+tableName).Scan(&count); err != nil {
		t.Fatalf("count rows in %s: %v", tableName, err)
	}
	return count
}
