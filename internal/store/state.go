package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Well-known daemon_state keys.
const (
	StateConsecutiveFailures = "consecutive_failures"
	StateLastScanAt          = "last_scan_at"
	StateLifecycle           = "lifecycle_state"
	StatePaused              = "scheduler_paused"
)

// GetState reads a daemon state value. The second return reports whether the
// key exists.
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM daemon_state WHERE key = ?`, key)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

// SetState writes a daemon state value, replacing any existing entry.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("state key is empty")
	}
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO daemon_state (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// DeleteState removes a daemon state entry if present.
func (s *Store) DeleteState(ctx context.Context, key string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM daemon_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

// GetStateInt reads an integer state value, returning fallback when the key
// is absent or unparseable.
func (s *Store) GetStateInt(ctx context.Context, key string, fallback int) (int, error) {
	value, ok, err := s.GetState(ctx, key)
	if err != nil {
		return fallback, err
	}
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// SetStateInt writes an integer state value.
func (s *Store) SetStateInt(ctx context.Context, key string, value int) error {
	return s.SetState(ctx, key, strconv.Itoa(value))
}
