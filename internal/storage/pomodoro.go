package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PomodoroStatus is the singleton timer state. It survives restarts so a
// running pomodoro can resume after a redeploy.
type PomodoroStatus struct {
	// StartAt is the instant the timer was started; nil when idle.
	StartAt *time.Time

	// Spent is the number of minutes elapsed in the current wave.
	Spent int

	// Wave counts completed-plus-current pomodoro cycles since start.
	Wave int

	// Rest is true while the timer is in a break period (or idle).
	Rest bool
}

// PomodoroStore persists the singleton pomodoro row. All methods are safe for
// concurrent use.
type PomodoroStore struct {
	db *sql.DB
}

// NewPomodoroStore returns a pomodoro store backed by db.
func NewPomodoroStore(db *DB) *PomodoroStore {
	return &PomodoroStore{db: db.sql}
}

// Load reads the current status. The row always exists; the schema seeds it.
func (s *PomodoroStore) Load(ctx context.Context) (PomodoroStatus, error) {
	const q = `SELECT start_at, spent, wave, rest FROM pomodoro_status WHERE id = 1`

	var (
		startAt sql.NullString
		rest    int
		status  PomodoroStatus
	)
	if err := s.db.QueryRowContext(ctx, q).Scan(&startAt, &status.Spent, &status.Wave, &rest); err != nil {
		return PomodoroStatus{}, fmt.Errorf("pomodoro store: load: %w", err)
	}
	if startAt.Valid && startAt.String != "" {
		t, err := time.Parse(time.RFC3339, startAt.String)
		if err != nil {
			return PomodoroStatus{}, fmt.Errorf("pomodoro store: parse start_at %q: %w", startAt.String, err)
		}
		status.StartAt = &t
	}
	status.Rest = rest != 0
	return status, nil
}

// Save overwrites the status row.
func (s *PomodoroStore) Save(ctx context.Context, status PomodoroStatus) error {
	const q = `UPDATE pomodoro_status SET start_at = ?, spent = ?, wave = ?, rest = ? WHERE id = 1`

	var startAt any
	if status.StartAt != nil {
		startAt = status.StartAt.UTC().Format(time.RFC3339)
	}
	rest := 0
	if status.Rest {
		rest = 1
	}
	if _, err := s.db.ExecContext(ctx, q, startAt, status.Spent, status.Wave, rest); err != nil {
		return fmt.Errorf("pomodoro store: save: %w", err)
	}
	return nil
}

// Reset returns the row to its idle defaults.
func (s *PomodoroStore) Reset(ctx context.Context) error {
	return s.Save(ctx, PomodoroStatus{Rest: true})
}
