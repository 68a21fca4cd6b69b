package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RecordPatternEvent stores one observed file→destination association. The
// learned-pattern source replays these to suggest destinations for similar
// files.
func (s *Store) RecordPatternEvent(ctx context.Context, event *PatternEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}
	if event.Destination == "" {
		return errors.New("event destination is empty")
	}
	recordedAt := event.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO pattern_events (extension, name, destination, source, recorded_at)
         VALUES (?, ?, ?, ?, ?)`,
		event.Extension,
		event.Name,
		event.Destination,
		string(sourceOrNone(event.Source)),
		formatTime(recordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert pattern event: %w", err)
	}
	return nil
}

// PatternEvents returns events for an extension, newest first, up to limit.
func (s *Store) PatternEvents(ctx context.Context, extension string, limit int) ([]*PatternEvent, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, extension, name, destination, source, recorded_at
         FROM pattern_events WHERE extension = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		extension,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pattern events: %w", err)
	}
	defer rows.Close()

	var events []*PatternEvent
	for rows.Next() {
		var (
			event       PatternEvent
			source      string
			recordedRaw string
		)
		if err := rows.Scan(&event.ID, &event.Extension, &event.Name, &event.Destination, &source, &recordedRaw); err != nil {
			return nil, err
		}
		event.Source = SuggestionSource(source)
		if t, err := parseTimeString(recordedRaw); err == nil {
			event.RecordedAt = t
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// DestinationCounts aggregates how often each destination was chosen for an
// extension.
func (s *Store) DestinationCounts(ctx context.Context, extension string) (map[string]int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT destination, COUNT(1) FROM pattern_events WHERE extension = ? GROUP BY destination`,
		extension,
	)
	if err != nil {
		return nil, fmt.Errorf("count destinations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			destination string
			count       int
		)
		if err := rows.Scan(&destination, &count); err != nil {
			return nil, err
		}
		counts[destination] = count
	}
	return counts, rows.Err()
}

// PrunePatternEvents drops events recorded before the cutoff so stale habits
// stop influencing suggestions.
func (s *Store) PrunePatternEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM pattern_events WHERE recorded_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune pattern events: %w", err)
	}
	return res.RowsAffected()
}
