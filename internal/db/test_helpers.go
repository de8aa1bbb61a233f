package db

import (
	"testing"
)

// NewTestDB opens an in-memory sqlite database with the full schema applied.
// Intended for tests in this module; the handle is closed via t.Cleanup.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrationsFS, err := MigrationsFS()
	if err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
	if err := database.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return database
}

// Pointer helpers for test fixtures.
func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int64) *int64 { return &i }
