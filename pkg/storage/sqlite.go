// Package storage persists collaboration rooms in SQLite.
package storage

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// Store manages the SQLite database. Safe for concurrent use; WAL mode
// allows readers alongside the single writer.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for an ephemeral store.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, cperrors.Wrap(err, cperrors.ErrCodeStorageWrite, "creating database directory")
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeStorageRead, "opening database")
	}

	// SQLite allows one writer at a time; WAL keeps readers unblocked.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, cperrors.Wrap(err, cperrors.ErrCodeStorageWrite, "configuring database").WithContext("pragma", pragma)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, cperrors.Wrap(err, cperrors.ErrCodeStorageWrite, "applying schema")
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
