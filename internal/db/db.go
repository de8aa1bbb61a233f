// Package db persists UWB readings, processed positions and report sessions
// in sqlite.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sql handle with the uwbv2 schema operations.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the sqlite database at path. The schema is managed
// by migrations; call MigrateUp after opening.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}

	// Serialised writes keep the single-file database simple under the
	// request-synchronous ingest model.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{sqlDB}, nil
}
