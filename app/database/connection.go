package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql connection pool so repositories share one handle.
type DB struct {
	*sql.DB
}

// NewConnection opens (and creates if necessary) the sqlite database at
// path. WAL mode keeps reads from blocking the single writer; the
// busy timeout covers the short overlap between the scheduler and API
// touching source metadata.
func NewConnection(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	// churn under concurrent repository calls.
	db.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}
