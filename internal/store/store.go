// Package store persists finalized declaration graphs in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a project or declaration is not stored.
var ErrNotFound = errors.New("store: not found")

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Prepare(query string) (*sql.Stmt, error)
}

// Store wraps a SQLite connection for graph storage.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// DefaultPath returns the default database location under the user cache dir.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".cache", "declgraph", "graph.db"), nil
}

// Open opens or creates a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return newStore(db, dbPath)
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// Every pooled connection would get its own empty database.
	db.SetMaxOpenConns(1)
	return newStore(db, ":memory:")
}

func newStore(db *sql.DB, dbPath string) (*Store, error) {
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
// The callback receives a transaction-scoped Store; the receiver's q field
// is never mutated, so concurrent readers are unaffected.
func (s *Store) WithTransaction(fn func(txStore *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path, or ":memory:".
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		indexed_at TEXT NOT NULL,
		root_path TEXT NOT NULL,
		file_count INTEGER NOT NULL DEFAULT 0,
		declaration_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS files (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		rel_path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		package TEXT NOT NULL DEFAULT '',
		parse_error TEXT NOT NULL DEFAULT '',
		skipped INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project, rel_path)
	);

	CREATE TABLE IF NOT EXISTS declarations (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		fqn TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		package TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL,
		start_line INTEGER NOT NULL DEFAULT 0,
		end_line INTEGER NOT NULL DEFAULT 0,
		dup_index INTEGER NOT NULL DEFAULT 0,
		is_primary INTEGER NOT NULL DEFAULT 1,
		body TEXT NOT NULL,
		PRIMARY KEY (project, fqn, dup_index)
	);

	CREATE INDEX IF NOT EXISTS idx_decls_name ON declarations(project, name);
	CREATE INDEX IF NOT EXISTS idx_decls_kind ON declarations(project, kind);
	CREATE INDEX IF NOT EXISTS idx_decls_file ON declarations(project, file_path);

	CREATE TABLE IF NOT EXISTS uses (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		source_fqn TEXT NOT NULL,
		target_fqn TEXT NOT NULL,
		PRIMARY KEY (project, source_fqn, target_fqn)
	);

	CREATE INDEX IF NOT EXISTS idx_uses_target ON uses(project, target_fqn);

	CREATE TABLE IF NOT EXISTS conflicts (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		fqn TEXT NOT NULL,
		paths TEXT NOT NULL,
		PRIMARY KEY (project, fqn)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Now returns the current time in ISO 8601 format.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
