// Package store persists chats, chat entries and application settings in
// SQLite. It uses modernc.org/sqlite, a pure-Go driver (no CGO required).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	character_name TEXT    NOT NULL DEFAULT '',
	user_name      TEXT    NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	ord        INTEGER NOT NULL,
	author     TEXT    NOT NULL DEFAULT '',
	is_user    INTEGER NOT NULL DEFAULT 0,
	text       TEXT    NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_chat_ord ON entries(chat_id, ord);
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the SQLite-backed chat and settings store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies the schema and
// clears settings that only live for one process run.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("store.Open: parent directory %q does not exist", dir)
		}
	}
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store.Open: open %q: %w", path, err)
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: ping %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: schema: %w", err)
	}
	s := &Store{db: db}
	for _, k := range volatileKeys {
		if err := s.Delete(ctx, k); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

type notFoundError struct{ what string }

func (e notFoundError) Error() string { return e.what + " not found" }

// IsNotFound reports whether err indicates a missing chat, entry or setting.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}
