package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SavePolicySnapshot records the most recently resolved automation policy so
// diagnostics can show what the scheduler is acting on. Only the latest
// handful of snapshots is kept.
func (s *Store) SavePolicySnapshot(ctx context.Context, snapshot *PolicySnapshot) error {
	if snapshot == nil {
		return errors.New("snapshot is nil")
	}
	resolvedAt := snapshot.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO policy_snapshots (
            mode, scan_interval_minutes, backlog_threshold, confidence_threshold,
            max_consecutive_failures, can_scan, can_auto_organize, notifications_enabled, resolved_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.Mode,
		snapshot.ScanIntervalMinutes,
		snapshot.BacklogThreshold,
		snapshot.ConfidenceThreshold,
		snapshot.MaxConsecutiveFailures,
		boolToInt(snapshot.CanScan),
		boolToInt(snapshot.CanAutoOrganize),
		boolToInt(snapshot.NotificationsEnabled),
		formatTime(resolvedAt),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM policy_snapshots
         WHERE id NOT IN (SELECT id FROM policy_snapshots ORDER BY resolved_at DESC, id DESC LIMIT 10)`,
	); err != nil {
		return fmt.Errorf("trim snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LatestPolicySnapshot returns the most recent snapshot, or nil when no
// policy has been resolved yet.
func (s *Store) LatestPolicySnapshot(ctx context.Context) (*PolicySnapshot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, mode, scan_interval_minutes, backlog_threshold, confidence_threshold,
                max_consecutive_failures, can_scan, can_auto_organize, notifications_enabled, resolved_at
         FROM policy_snapshots ORDER BY resolved_at DESC, id DESC LIMIT 1`,
	)

	var (
		snapshot      PolicySnapshot
		canScan       int
		canOrganize   int
		notifications int
		resolvedRaw   string
	)
	err := row.Scan(
		&snapshot.ID,
		&snapshot.Mode,
		&snapshot.ScanIntervalMinutes,
		&snapshot.BacklogThreshold,
		&snapshot.ConfidenceThreshold,
		&snapshot.MaxConsecutiveFailures,
		&canScan,
		&canOrganize,
		&notifications,
		&resolvedRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}

	snapshot.CanScan = canScan != 0
	snapshot.CanAutoOrganize = canOrganize != 0
	snapshot.NotificationsEnabled = notifications != 0
	if t, err := parseTimeString(resolvedRaw); err == nil {
		snapshot.ResolvedAt = t
	}
	return &snapshot, nil
}

// RecordScanMetrics persists the summary of one pipeline run.
func (s *Store) RecordScanMetrics(ctx context.Context, metrics *ScanMetrics) error {
	if metrics == nil {
		return errors.New("metrics is nil")
	}
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO scan_metrics (
            scan_id, trigger, started_at, finished_at, files_seen, files_new,
            folders_scanned, folders_failed, timed_out, error_summary
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		metrics.ScanID,
		metrics.Trigger,
		formatTime(metrics.StartedAt),
		formatTime(metrics.FinishedAt),
		metrics.FilesSeen,
		metrics.FilesNew,
		metrics.FoldersScanned,
		metrics.FoldersFailed,
		boolToInt(metrics.TimedOut),
		nullableString(metrics.ErrorSummary),
	)
	if err != nil {
		return fmt.Errorf("insert scan metrics: %w", err)
	}
	return nil
}

// LastScanMetrics returns the most recent pipeline summary, or nil when no
// scan has completed yet.
func (s *Store) LastScanMetrics(ctx context.Context) (*ScanMetrics, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, scan_id, trigger, started_at, finished_at, files_seen, files_new,
                folders_scanned, folders_failed, timed_out, error_summary
         FROM scan_metrics ORDER BY finished_at DESC, id DESC LIMIT 1`,
	)

	var (
		metrics     ScanMetrics
		startedRaw  string
		finishedRaw string
		timedOut    int
		summary     sql.NullString
	)
	err := row.Scan(
		&metrics.ID,
		&metrics.ScanID,
		&metrics.Trigger,
		&startedRaw,
		&finishedRaw,
		&metrics.FilesSeen,
		&metrics.FilesNew,
		&metrics.FoldersScanned,
		&metrics.FoldersFailed,
		&timedOut,
		&summary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last scan metrics: %w", err)
	}

	metrics.TimedOut = timedOut != 0
	metrics.ErrorSummary = summary.String
	if t, err := parseTimeString(startedRaw); err == nil {
		metrics.StartedAt = t
	}
	if t, err := parseTimeString(finishedRaw); err == nil {
		metrics.FinishedAt = t
	}
	return &metrics, nil
}
