package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Sticker pairs an image URL with the regular expression that triggers it.
// The URL doubles as the primary key.
type Sticker struct {
	URL    string
	Regexp string
}

// StickerStore persists sticker registrations. All methods are safe for
// concurrent use.
type StickerStore struct {
	db *sql.DB
}

// NewStickerStore returns a sticker store backed by db.
func NewStickerStore(db *DB) *StickerStore {
	return &StickerStore{db: db.sql}
}

// All returns every sticker ordered by URL.
func (s *StickerStore) All(ctx context.Context) ([]Sticker, error) {
	const q = `SELECT id, regexp FROM stickers ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sticker store: list: %w", err)
	}
	defer rows.Close()

	var stickers []Sticker
	for rows.Next() {
		var st Sticker
		if err := rows.Scan(&st.URL, &st.Regexp); err != nil {
			return nil, fmt.Errorf("sticker store: scan: %w", err)
		}
		stickers = append(stickers, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sticker store: list: %w", err)
	}
	return stickers, nil
}

// Get returns the sticker registered under url. ok is false when absent.
func (s *StickerStore) Get(ctx context.Context, url string) (st Sticker, ok bool, err error) {
	const q = `SELECT id, regexp FROM stickers WHERE id = ?`

	err = s.db.QueryRowContext(ctx, q, url).Scan(&st.URL, &st.Regexp)
	if errors.Is(err, sql.ErrNoRows) {
		return Sticker{}, false, nil
	}
	if err != nil {
		return Sticker{}, false, fmt.Errorf("sticker store: get %s: %w", url, err)
	}
	return st, true, nil
}

// Set inserts or overwrites the sticker under url.
func (s *StickerStore) Set(ctx context.Context, url, regexp string) error {
	const q = `
		INSERT INTO stickers (id, regexp) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET regexp = excluded.regexp`

	if _, err := s.db.ExecContext(ctx, q, url, regexp); err != nil {
		return fmt.Errorf("sticker store: set %s: %w", url, err)
	}
	return nil
}

// Delete removes the sticker under url. Deleting an absent URL is a no-op.
func (s *StickerStore) Delete(ctx context.Context, url string) error {
	const q = `DELETE FROM stickers WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, q, url); err != nil {
		return fmt.Errorf("sticker store: delete %s: %w", url, err)
	}
	return nil
}
