// Package store is the SQLite persistence layer for the component graph.
// It implements the storage contract the parsing core consumes: component
// upserts with key-wise metadata merge, cascading file deletion, placeholder
// relationship queries, bulk resolution patches, and the embedding staleness
// view.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer.
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

// Ping reports whether the connection is still usable. A failed ping is the
// one storage failure treated as fatal to a run.
func (s *Store) Ping() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("store connection lost: %w", err)
	}
	return nil
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  path            TEXT PRIMARY KEY,
  language        TEXT NOT NULL,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS components (
  id              TEXT PRIMARY KEY,
  name            TEXT NOT NULL,
  type            TEXT NOT NULL,
  language        TEXT NOT NULL,
  file_path       TEXT NOT NULL,
  start_line      INTEGER NOT NULL DEFAULT 1,
  end_line        INTEGER NOT NULL DEFAULT 1,
  start_column    INTEGER NOT NULL DEFAULT 0,
  end_column      INTEGER NOT NULL DEFAULT 0,
  parent_id       TEXT,
  code            TEXT,
  metadata        TEXT NOT NULL DEFAULT '{}',
  content_hash    TEXT
);

CREATE TABLE IF NOT EXISTS relationships (
  id              TEXT PRIMARY KEY,
  type            TEXT NOT NULL,
  source          TEXT NOT NULL,
  target          TEXT NOT NULL,
  resolved_source TEXT,
  resolved_target TEXT,
  start_line      INTEGER,
  end_line        INTEGER,
  start_column    INTEGER,
  end_column      INTEGER,
  metadata        TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS embeddings (
  entity_id       TEXT PRIMARY KEY,
  entity_type     TEXT NOT NULL DEFAULT 'component',
  vector          BLOB,
  version         TEXT,
  content_hash    TEXT
);

CREATE TABLE IF NOT EXISTS index_metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_components_file ON components(file_path);
CREATE INDEX IF NOT EXISTS idx_components_name ON components(name);
CREATE INDEX IF NOT EXISTS idx_components_type ON components(type);
CREATE INDEX IF NOT EXISTS idx_components_language ON components(language);
CREATE INDEX IF NOT EXISTS idx_components_parent ON components(parent_id);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target);
CREATE INDEX IF NOT EXISTS idx_relationships_resolved_source ON relationships(resolved_source);
CREATE INDEX IF NOT EXISTS idx_relationships_resolved_target ON relationships(resolved_target);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type);
`

// GetMetadata returns the value for an index metadata key, or "".
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM index_metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata upserts an index metadata key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO index_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// placeholderList returns "?, ?, ..." for n parameters.
func placeholderList(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// stringsToArgs converts a string slice into query args.
func stringsToArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
