package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Memo is one stored key/value pair.
type Memo struct {
	Key   string
	Value string
}

// MemoStore persists memos. All methods are safe for concurrent use.
type MemoStore struct {
	db *sql.DB
}

// NewMemoStore returns a memo store backed by db.
func NewMemoStore(db *DB) *MemoStore {
	return &MemoStore{db: db.sql}
}

// All returns every memo ordered by key.
func (s *MemoStore) All(ctx context.Context) ([]Memo, error) {
	const q = `SELECT key, value FROM memos ORDER BY key`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("memo store: list: %w", err)
	}
	defer rows.Close()

	var memos []Memo
	for rows.Next() {
		var m Memo
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("memo store: scan: %w", err)
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memo store: list: %w", err)
	}
	return memos, nil
}

// Get returns the value stored under key. ok is false when key is absent.
func (s *MemoStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	const q = `SELECT value FROM memos WHERE key = ?`

	err = s.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("memo store: get %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or overwrites the memo under key.
func (s *MemoStore) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO memos (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("memo store: set %s: %w", key, err)
	}
	return nil
}

// Delete removes the memo under key. Deleting an absent key is a no-op.
func (s *MemoStore) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM memos WHERE key = ?`

	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("memo store: delete %s: %w", key, err)
	}
	return nil
}
