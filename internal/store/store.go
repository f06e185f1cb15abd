// Package store persists analysis state in SQLite: the serialized library
// cache of each analysis root, the relationship index, per-file analysis
// records and string metadata.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for arbor's five tables.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS contexts (
  root            TEXT PRIMARY KEY,
  payload         TEXT NOT NULL,
  saved_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  path            TEXT PRIMARY KEY,
  root            TEXT NOT NULL,
  language        TEXT NOT NULL,
  stamp           TEXT NOT NULL,
  error_count     INTEGER NOT NULL DEFAULT 0,
  analyzed_at     TIMESTAMP
);

-- Relationship index

CREATE TABLE IF NOT EXISTS elements (
  key             TEXT PRIMARY KEY,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  source          TEXT NOT NULL,
  name_offset     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS relationships (
  id              INTEGER PRIMARY KEY,
  element_key     TEXT NOT NULL REFERENCES elements(key),
  relationship    TEXT NOT NULL,
  site_key        TEXT NOT NULL REFERENCES elements(key),
  start_offset    INTEGER NOT NULL,
  length          INTEGER NOT NULL,
  qualified       BOOLEAN DEFAULT FALSE,
  resolved        BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

-- Indexes

CREATE INDEX IF NOT EXISTS idx_files_root ON files(root);
CREATE INDEX IF NOT EXISTS idx_elements_source ON elements(source);
CREATE INDEX IF NOT EXISTS idx_elements_name ON elements(name);
CREATE INDEX IF NOT EXISTS idx_relationships_element ON relationships(element_key);
CREATE INDEX IF NOT EXISTS idx_relationships_site ON relationships(site_key);
`

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
