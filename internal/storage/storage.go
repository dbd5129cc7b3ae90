// Package storage is the SQLite persistence layer behind the bot's features.
//
// A single database file holds the memo key/value pairs, the sticker
// registrations, and the singleton pomodoro status row. [Open] creates the
// file and the schema on first use; the typed stores ([MemoStore],
// [StickerStore], [PomodoroStore]) wrap it with feature-scoped queries.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS memos (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stickers (
  id TEXT PRIMARY KEY,
  regexp TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pomodoro_status (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  start_at TEXT,
  spent INTEGER NOT NULL DEFAULT 0,
  wave INTEGER NOT NULL DEFAULT 0,
  rest INTEGER NOT NULL DEFAULT 1
);
INSERT OR IGNORE INTO pomodoro_status (id, spent, wave, rest) VALUES (1, 0, 0, 1);
`

// DB wraps the shared SQLite handle.
type DB struct {
	sql *sql.DB
}

// Open creates (or reuses) the database at path, enables WAL journaling and
// applies the schema. Parent directories are created as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// SQLite serialises writes; a single connection avoids SQLITE_BUSY
	// contention between the features.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &DB{sql: db}, nil
}

// Ping verifies the database file is still reachable. Used by the readiness
// probe.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Close releases the underlying handle.
func (d *DB) Close() error {
	return d.sql.Close()
}
