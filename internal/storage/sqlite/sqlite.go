// Package sqlite opens a SQLite-backed storage.Store.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/settleup/internal/storage/sqlstore"
)

// New creates a SQLite store with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*sqlstore.Store, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection keeps transactions from
	// failing with SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	store, err := sqlstore.New(db, sqlstore.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// dsn enables foreign keys on every connection the pool opens, not only the
// first one.
func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + dbPath + "?" + q.Encode()
}
