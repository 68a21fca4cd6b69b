package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = "id, path, folder_id, name, extension, size_bytes, file_created_at, file_modified_at, status, suggested_destination, suggestion_source, suggestion_confidence, matched_rule_id, error_message, first_seen_at, updated_at"

// UpsertRecord inserts a newly discovered file or refreshes an existing row
// keyed by path. Skipped records keep their status and suggestion untouched
// (only file attributes are refreshed), and so do completed records while the
// file itself is unchanged: copy actions leave the source in place, and the
// organized outcome must not flip back to ready on every rescan. A completed
// path whose size or modification time differs is a genuinely new file and is
// reclassified.
func (s *Store) UpsertRecord(ctx context.Context, record *FileRecord) (*FileRecord, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	if record.Path == "" {
		return nil, errors.New("record path is empty")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanRecordRow(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM file_records WHERE path = ?`, record.Path))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO file_records (
                path, folder_id, name, extension, size_bytes,
                file_created_at, file_modified_at, status,
                suggested_destination, suggestion_source, suggestion_confidence,
                matched_rule_id, error_message, first_seen_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.Path,
			nullableInt64(record.FolderID),
			record.Name,
			record.Extension,
			record.SizeBytes,
			nullableTime(record.FileCreatedAt),
			nullableTime(record.FileModifiedAt),
			statusOrPending(record),
			nullableString(record.SuggestedDestination),
			sourceOrNone(record.SuggestionSource),
			record.SuggestionConfidence,
			nullableInt64(record.MatchedRuleID),
			nullableString(record.ErrorMessage),
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			return nil, fmt.Errorf("insert record: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		record.ID = id
	case err != nil:
		return nil, fmt.Errorf("lookup record: %w", err)
	case existing.Status == StatusSkipped,
		existing.Status == StatusCompleted && fileUnchanged(existing, record):
		_, err := tx.ExecContext(
			ctx,
			`UPDATE file_records
             SET folder_id = ?, size_bytes = ?, file_created_at = ?, file_modified_at = ?, updated_at = ?
             WHERE id = ?`,
			nullableInt64(record.FolderID),
			record.SizeBytes,
			nullableTime(record.FileCreatedAt),
			nullableTime(record.FileModifiedAt),
			formatTime(now),
			existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("refresh settled record: %w", err)
		}
		record.ID = existing.ID
	default:
		_, err := tx.ExecContext(
			ctx,
			`UPDATE file_records
             SET folder_id = ?, name = ?, extension = ?, size_bytes = ?,
                 file_created_at = ?, file_modified_at = ?, status = ?,
                 suggested_destination = ?, suggestion_source = ?, suggestion_confidence = ?,
                 matched_rule_id = ?, error_message = ?, updated_at = ?
             WHERE id = ?`,
			nullableInt64(record.FolderID),
			record.Name,
			record.Extension,
			record.SizeBytes,
			nullableTime(record.FileCreatedAt),
			nullableTime(record.FileModifiedAt),
			statusOrPending(record),
			nullableString(record.SuggestedDestination),
			sourceOrNone(record.SuggestionSource),
			record.SuggestionConfidence,
			nullableInt64(record.MatchedRuleID),
			nullableString(record.ErrorMessage),
			formatTime(now),
			existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update record: %w", err)
		}
		record.ID = existing.ID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}

	return s.GetRecord(ctx, record.ID)
}

// GetRecord fetches a file record by identifier. Missing rows return nil.
func (s *Store) GetRecord(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM file_records WHERE id = ?`, id)
	record, err := scanRecordRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// GetRecordByPath fetches a file record by its path identity.
func (s *Store) GetRecordByPath(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM file_records WHERE path = ?`, path)
	record, err := scanRecordRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record by path: %w", err)
	}
	return record, nil
}

// ListRecords returns records filtered by status set (or all records when no
// status is provided), ordered by first discovery.
func (s *Store) ListRecords(ctx context.Context, statuses ...RecordStatus) ([]*FileRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM file_records`
	orderClause := ` ORDER BY first_seen_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateRecord persists changes to an existing record.
func (s *Store) UpdateRecord(ctx context.Context, record *FileRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	err := s.execWithoutResultRetry(
		ctx,
		`UPDATE file_records
         SET path = ?, folder_id = ?, name = ?, extension = ?, size_bytes = ?,
             file_created_at = ?, file_modified_at = ?, status = ?,
             suggested_destination = ?, suggestion_source = ?, suggestion_confidence = ?,
             matched_rule_id = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		record.Path,
		nullableInt64(record.FolderID),
		record.Name,
		record.Extension,
		record.SizeBytes,
		nullableTime(record.FileCreatedAt),
		nullableTime(record.FileModifiedAt),
		statusOrPending(record),
		nullableString(record.SuggestedDestination),
		sourceOrNone(record.SuggestionSource),
		record.SuggestionConfidence,
		nullableInt64(record.MatchedRuleID),
		nullableString(record.ErrorMessage),
		formatTime(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// MarkRecordCompleted transitions a record to completed after a transfer.
func (s *Store) MarkRecordCompleted(ctx context.Context, id int64) error {
	return s.setRecordStatus(ctx, id, StatusCompleted)
}

// MarkRecordSkipped transitions a record to skipped; it will not be
// re-suggested on later scans.
func (s *Store) MarkRecordSkipped(ctx context.Context, id int64) error {
	return s.setRecordStatus(ctx, id, StatusSkipped)
}

func (s *Store) setRecordStatus(ctx context.Context, id int64, status RecordStatus) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE file_records SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set record status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %d not found", id)
	}
	return nil
}

// ReadyCount returns the number of suggestions awaiting action. The scheduler
// compares this backlog against the policy threshold before auto-organizing.
func (s *Store) ReadyCount(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM file_records WHERE status = ?`, StatusReady)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count ready records: %w", err)
	}
	return count, nil
}

// RecordStats returns a count of records grouped by status.
func (s *Store) RecordStats(ctx context.Context) (map[RecordStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM file_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[RecordStatus]int)
	for rows.Next() {
		var status RecordStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// RemoveRecord deletes a record by identifier.
func (s *Store) RemoveRecord(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM file_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed records.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM file_records WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// MarkMissing flags pending/ready records whose path is absent from the
// supplied set of currently seen paths within the given folder. The rows are
// kept (deleting records belongs to the caller, via RemoveRecord); they drop
// out of suggestions and flow back through classification if the file
// reappears.
func (s *Store) MarkMissing(ctx context.Context, folderID int64, seen map[string]struct{}) (int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, path FROM file_records WHERE folder_id = ? AND status IN (?, ?)`,
		folderID, StatusPending, StatusReady,
	)
	if err != nil {
		return 0, fmt.Errorf("query folder records: %w", err)
	}
	defer rows.Close()

	var stale []int64
	for rows.Next() {
		var (
			id   int64
			path string
		)
		if err := rows.Scan(&id, &path); err != nil {
			return 0, err
		}
		if _, ok := seen[path]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	placeholders := makePlaceholders(len(stale))
	args := make([]any, 0, len(stale)+2)
	args = append(args, StatusMissing, formatTime(time.Now().UTC()))
	for _, id := range stale {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE file_records SET status = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark missing records: %w", err)
	}
	return res.RowsAffected()
}

// fileUnchanged reports whether the incoming scan saw the same file content
// identity the existing row recorded.
func fileUnchanged(existing, incoming *FileRecord) bool {
	return existing.SizeBytes == incoming.SizeBytes &&
		existing.FileModifiedAt.Equal(incoming.FileModifiedAt)
}

func statusOrPending(record *FileRecord) RecordStatus {
	if record.Status == "" {
		return StatusPending
	}
	return record.Status
}

func sourceOrNone(source SuggestionSource) SuggestionSource {
	if source == "" {
		return SourceNone
	}
	return source
}

func scanRecordRow(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id            int64
		path          string
		folderID      sql.NullInt64
		name          string
		extension     string
		sizeBytes     int64
		fileCreated   sql.NullString
		fileModified  sql.NullString
		statusStr     string
		suggestedDest sql.NullString
		sourceStr     string
		confidence    float64
		matchedRule   sql.NullInt64
		errorMessage  sql.NullString
		firstSeenRaw  string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&path,
		&folderID,
		&name,
		&extension,
		&sizeBytes,
		&fileCreated,
		&fileModified,
		&statusStr,
		&suggestedDest,
		&sourceStr,
		&confidence,
		&matchedRule,
		&errorMessage,
		&firstSeenRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &FileRecord{
		ID:                   id,
		Path:                 path,
		FolderID:             folderID.Int64,
		Name:                 name,
		Extension:            extension,
		SizeBytes:            sizeBytes,
		Status:               RecordStatus(statusStr),
		SuggestedDestination: suggestedDest.String,
		SuggestionSource:     SuggestionSource(sourceStr),
		SuggestionConfidence: confidence,
		MatchedRuleID:        matchedRule.Int64,
		ErrorMessage:         errorMessage.String,
	}

	if fileCreated.Valid {
		if t, err := parseTimeString(fileCreated.String); err == nil {
			record.FileCreatedAt = t
		}
	}
	if fileModified.Valid {
		if t, err := parseTimeString(fileModified.String); err == nil {
			record.FileModifiedAt = t
		}
	}
	if t, err := parseTimeString(firstSeenRaw); err == nil {
		record.FirstSeenAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = t
	}
	return record, nil
}
