package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - transformations table
// 2 - request_id index
const currentSchemaVersion = 2

// DefaultMaxEntries is the capacity used when none is configured.
const DefaultMaxEntries = 1000

// MemoryPath opens a private in-memory log.
const MemoryPath = ":memory:"

// Log is a SQLite-backed, size-bounded transformation log.
// Safe for concurrent use.
type Log struct {
	db         *sql.DB
	maxEntries int
	now        func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithMaxEntries sets the capacity. Zero or negative keeps every row.
func WithMaxEntries(n int) Option {
	return func(l *Log) {
		l.maxEntries = n
	}
}

// WithClock overrides the time source for created_at.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// Open creates or opens the log database at path. An empty path or
// MemoryPath opens an in-memory database.
func Open(path string, opts ...Option) (*Log, error) {
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open transformation log: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect transformation log: %w", err)
	}

	// One connection: SQLite allows a single writer, and an in-memory
	// database lives exactly as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db, path == MemoryPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	l := &Log{
		db:         db,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close closes the database.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// MaxEntries returns the configured capacity.
func (l *Log) MaxEntries() int {
	return l.maxEntries
}

func applyPragmas(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates the tables and runs migrations. Idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	// Version 1 databases only lack the request index, which schema.sql
	// creates with IF NOT EXISTS.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// schemaVersion is used by tests.
func (l *Log) schemaVersion() (int, error) {
	var v int
	err := l.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

