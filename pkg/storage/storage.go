package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("already exists")
	// ErrConstraint is returned when a write violates a CHECK constraint,
	// e.g. a percentage outside [0,100].
	ErrConstraint = errors.New("constraint violation")
)

type DB struct {
	sql *sql.DB
}

const entriesSchema = `
CREATE TABLE IF NOT EXISTS entries (
  id         INTEGER PRIMARY KEY,
  b1         TEXT NOT NULL CHECK (b1 <> ''),
  b2         TEXT NOT NULL CHECK (b2 <> ''),
  b3         TEXT NOT NULL CHECK (b3 <> ''),
  detail     TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_entries_b1 ON entries(b1);
CREATE INDEX IF NOT EXISTS idx_entries_b1_b2 ON entries(b1, b2);
CREATE INDEX IF NOT EXISTS idx_entries_path ON entries(b1, b2, b3);
`

const overridesSchema = `
CREATE TABLE IF NOT EXISTS overrides (
  id         INTEGER PRIMARY KEY,
  scope      TEXT NOT NULL CHECK (scope IN ('B2','B3','B3_DETAIL')),
  b1         TEXT NOT NULL,
  b2         TEXT NOT NULL DEFAULT '',
  b3         TEXT NOT NULL DEFAULT '',
  value      TEXT NOT NULL,
  percentage REAL NOT NULL DEFAULT 0 CHECK (percentage >= 0 AND percentage <= 100),
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(scope, b1, b2, b3, value)
);
CREATE INDEX IF NOT EXISTS idx_overrides_path ON overrides(scope, b1, b2, b3);
`

const accountsSchema = `
CREATE TABLE IF NOT EXISTS brands (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL UNIQUE,
  percentage REAL NOT NULL DEFAULT 0 CHECK (percentage >= 0 AND percentage <= 100),
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS users (
  id            INTEGER PRIMARY KEY,
  username      TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin','user')),
  created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS sessions (
  token      TEXT PRIMARY KEY,
  user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  expires_at INTEGER NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	for _, schema := range []string{entriesSchema, overridesSchema, accountsSchema} {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Stats returns row counts of the data tables.
func (d *DB) Stats(ctx context.Context) (Counts, error) {
	var c Counts
	err := d.sql.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM overrides),
			(SELECT COUNT(*) FROM brands)
	`).Scan(&c.Entries, &c.Overrides, &c.Brands)
	return c, err
}

// classify maps SQLite constraint failures onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%w: %v", ErrConstraint, err)
		}
	}
	// Fall back to the message for drivers that only report the primary code.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}

// parseTimestamp reads SQLite CURRENT_TIMESTAMP values.
func parseTimestamp(s string) time.Time {
	// Try "2006-01-02 15:04:05" then RFC3339
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
