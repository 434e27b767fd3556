// ABOUTME: Shared SQLite engine for the per-store database files using modernc.org/sqlite
// ABOUTME: Handles open/create with WAL mode, busy timeout, schema creation, and close guards

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// engine owns one SQLite database file. Each logical store (history,
// bans, call names, replay) opens its own engine at its own location;
// no two stores share a file.
type engine struct {
	db     *sql.DB
	logger *slog.Logger
	closed atomic.Bool
}

// openEngine opens (creating if absent) the database at path, applies
// the connection pragmas, and executes schema. Parent directories are
// created if needed.
func openEngine(path, component, schema string) (*engine, error) {
	logger := slog.Default().With("component", component)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Pragmas are per-connection; pin the pool to one connection so they
	// hold for every statement and writes serialize on this file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Verify the location is actually writable, not just openable.
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying write access: %w", err)
	}

	logger.Info("store initialized", "path", path)
	return &engine{db: db, logger: logger}, nil
}

// guard returns ErrClosed once Close has been called.
func (e *engine) guard() error {
	if e.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close flushes and releases the database. Safe to call multiple times;
// operations after Close fail with ErrClosed.
func (e *engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.logger.Info("closing store")
	return e.db.Close()
}
