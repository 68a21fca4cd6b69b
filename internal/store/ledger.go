package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const transferColumns = "id, operation, source_path, destination_path, record_id, performed_at, undone, undone_at"

// AppendTransfer records a completed operation in the undo ledger, trimming
// the ledger to the given history limit. Appending a fresh operation discards
// any undone entries, so redo history does not survive new work.
func (s *Store) AppendTransfer(ctx context.Context, entry *TransferEntry, limit int) (*TransferEntry, error) {
	if entry == nil {
		return nil, errors.New("entry is nil")
	}
	if entry.SourcePath == "" {
		return nil, errors.New("entry source path is empty")
	}
	if limit < 1 {
		limit = 1
	}

	performedAt := entry.PerformedAt
	if performedAt.IsZero() {
		performedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transfer_log WHERE undone = 1`); err != nil {
		return nil, fmt.Errorf("clear redo entries: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO transfer_log (operation, source_path, destination_path, record_id, performed_at, undone, undone_at)
         VALUES (?, ?, ?, ?, ?, 0, NULL)`,
		string(entry.Operation),
		entry.SourcePath,
		nullableString(entry.DestinationPath),
		nullableInt64(entry.RecordID),
		formatTime(performedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM transfer_log
         WHERE id NOT IN (SELECT id FROM transfer_log ORDER BY performed_at DESC, id DESC LIMIT ?)`,
		limit,
	); err != nil {
		return nil, fmt.Errorf("trim ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger: %w", err)
	}
	return s.GetTransfer(ctx, id)
}

// GetTransfer fetches a ledger entry by identifier. Missing rows return nil.
func (s *Store) GetTransfer(ctx context.Context, id int64) (*TransferEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfer_log WHERE id = ?`, id)
	entry, err := scanTransferRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return entry, nil
}

// RecentTransfers returns ledger entries newest first, up to limit.
func (s *Store) RecentTransfers(ctx context.Context, limit int) ([]*TransferEntry, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+transferColumns+` FROM transfer_log ORDER BY performed_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var entries []*TransferEntry
	for rows.Next() {
		entry, err := scanTransferRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LatestUndoable returns the most recent entry that has not been undone, or
// nil when the ledger holds nothing to reverse.
func (s *Store) LatestUndoable(ctx context.Context) (*TransferEntry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+transferColumns+` FROM transfer_log WHERE undone = 0 ORDER BY performed_at DESC, id DESC LIMIT 1`,
	)
	entry, err := scanTransferRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest undoable: %w", err)
	}
	return entry, nil
}

// LatestRedoable returns the most recently undone entry, or nil when there is
// nothing to replay.
func (s *Store) LatestRedoable(ctx context.Context) (*TransferEntry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+transferColumns+` FROM transfer_log WHERE undone = 1 ORDER BY undone_at DESC, id DESC LIMIT 1`,
	)
	entry, err := scanTransferRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest redoable: %w", err)
	}
	return entry, nil
}

// MarkTransferUndone flags a ledger entry as reversed.
func (s *Store) MarkTransferUndone(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE transfer_log SET undone = 1, undone_at = ? WHERE id = ? AND undone = 0`,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark undone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transfer %d not found or already undone", id)
	}
	return nil
}

// MarkTransferRedone clears the undone flag after an entry is replayed.
func (s *Store) MarkTransferRedone(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE transfer_log SET undone = 0, undone_at = NULL WHERE id = ? AND undone = 1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark redone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transfer %d not found or not undone", id)
	}
	return nil
}

func scanTransferRow(scanner interface{ Scan(dest ...any) error }) (*TransferEntry, error) {
	var (
		id           int64
		operation    string
		sourcePath   string
		destination  sql.NullString
		recordID     sql.NullInt64
		performedRaw string
		undone       int
		undoneRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&operation,
		&sourcePath,
		&destination,
		&recordID,
		&performedRaw,
		&undone,
		&undoneRaw,
	); err != nil {
		return nil, err
	}

	entry := &TransferEntry{
		ID:              id,
		Operation:       TransferOp(operation),
		SourcePath:      sourcePath,
		DestinationPath: destination.String,
		RecordID:        recordID.Int64,
		Undone:          undone != 0,
	}
	if t, err := parseTimeString(performedRaw); err == nil {
		entry.PerformedAt = t
	}
	if undoneRaw.Valid {
		if t, err := parseTimeString(undoneRaw.String); err == nil {
			entry.UndoneAt = &t
		}
	}
	return entry, nil
}
