package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendAuditEvent stores one activity entry. The audit recorder batches
// these off the hot path, so failures here are logged rather than surfaced
// to the operation that produced the event.
func (s *Store) AppendAuditEvent(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}
	if event.EventType == "" {
		return errors.New("event type is empty")
	}
	recordedAt := event.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO audit_events (event_type, subject, detail, recorded_at) VALUES (?, ?, ?, ?)`,
		event.EventType,
		nullableString(event.Subject),
		nullableString(event.Detail),
		formatTime(recordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// RecentAuditEvents returns activity entries newest first, up to limit.
func (s *Store) RecentAuditEvents(ctx context.Context, limit int) ([]*AuditEvent, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, event_type, subject, detail, recorded_at
         FROM audit_events ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var (
			event       AuditEvent
			subject     sql.NullString
			detail      sql.NullString
			recordedRaw string
		)
		if err := rows.Scan(&event.ID, &event.EventType, &subject, &detail, &recordedRaw); err != nil {
			return nil, err
		}
		event.Subject = subject.String
		event.Detail = detail.String
		if t, err := parseTimeString(recordedRaw); err == nil {
			event.RecordedAt = t
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// PruneAuditEvents drops entries recorded before the cutoff.
func (s *Store) PruneAuditEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM audit_events WHERE recorded_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return res.RowsAffected()
}
