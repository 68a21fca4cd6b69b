package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const folderColumns = "id, name, folder_type, path, enabled, token_json, last_scan_at, created_at, updated_at"

// UpsertFolder inserts a watched folder or refreshes the existing row keyed
// by name. The access token is replaced only when the caller supplies one.
func (s *Store) UpsertFolder(ctx context.Context, folder *Folder) (*Folder, error) {
	if folder == nil {
		return nil, errors.New("folder is nil")
	}
	if folder.Name == "" {
		return nil, errors.New("folder name is empty")
	}
	if folder.Path == "" {
		return nil, errors.New("folder path is empty")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin folder tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanFolderRow(tx.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE name = ?`, folder.Name))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO folders (name, folder_type, path, enabled, token_json, last_scan_at, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			folder.Name,
			string(folderTypeOrCustom(folder.Type)),
			folder.Path,
			boolToInt(folder.Enabled),
			nullableString(folder.TokenJSON),
			nullableTimePtr(folder.LastScanAt),
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			return nil, fmt.Errorf("insert folder: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		folder.ID = id
	case err != nil:
		return nil, fmt.Errorf("lookup folder: %w", err)
	default:
		token := existing.TokenJSON
		if folder.TokenJSON != "" {
			token = folder.TokenJSON
		}
		_, err := tx.ExecContext(
			ctx,
			`UPDATE folders
             SET folder_type = ?, path = ?, enabled = ?, token_json = ?, updated_at = ?
             WHERE id = ?`,
			string(folderTypeOrCustom(folder.Type)),
			folder.Path,
			boolToInt(folder.Enabled),
			nullableString(token),
			formatTime(now),
			existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update folder: %w", err)
		}
		folder.ID = existing.ID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit folder: %w", err)
	}
	return s.GetFolder(ctx, folder.ID)
}

// GetFolder fetches a folder by identifier. Missing rows return nil.
func (s *Store) GetFolder(ctx context.Context, id int64) (*Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	folder, err := scanFolderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// GetFolderByName fetches a folder by its unique name.
func (s *Store) GetFolderByName(ctx context.Context, name string) (*Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE name = ?`, name)
	folder, err := scanFolderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get folder by name: %w", err)
	}
	return folder, nil
}

// Folders returns every registered folder ordered by name.
func (s *Store) Folders(ctx context.Context) ([]*Folder, error) {
	return s.queryFolders(ctx, `SELECT `+folderColumns+` FROM folders ORDER BY name`)
}

// EnabledFolders returns the folders the scan pipeline should visit.
func (s *Store) EnabledFolders(ctx context.Context) ([]*Folder, error) {
	return s.queryFolders(ctx, `SELECT `+folderColumns+` FROM folders WHERE enabled = 1 ORDER BY name`)
}

func (s *Store) queryFolders(ctx context.Context, query string) ([]*Folder, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		folder, err := scanFolderRow(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

// SetFolderEnabled toggles whether a folder participates in scans.
func (s *Store) SetFolderEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE folders SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set folder enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("folder %d not found", id)
	}
	return nil
}

// UpdateFolderToken replaces the stored access token for a folder.
func (s *Store) UpdateFolderToken(ctx context.Context, id int64, tokenJSON string) error {
	err := s.execWithoutResultRetry(
		ctx,
		`UPDATE folders SET token_json = ?, updated_at = ? WHERE id = ?`,
		nullableString(tokenJSON),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update folder token: %w", err)
	}
	return nil
}

// UpdateFolderScanned stamps the folder's last successful scan time.
func (s *Store) UpdateFolderScanned(ctx context.Context, id int64, at time.Time) error {
	err := s.execWithoutResultRetry(
		ctx,
		`UPDATE folders SET last_scan_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update folder scanned: %w", err)
	}
	return nil
}

// RemoveFolder deletes a folder registration. Records discovered under it
// keep their rows; the foreign key nulls their folder reference.
func (s *Store) RemoveFolder(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete folder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func folderTypeOrCustom(t FolderType) FolderType {
	switch t {
	case FolderDownloads, FolderDesktop, FolderDocuments, FolderCustom:
		return t
	}
	return FolderCustom
}

func scanFolderRow(scanner interface{ Scan(dest ...any) error }) (*Folder, error) {
	var (
		id         int64
		name       string
		folderType string
		path       string
		enabled    int
		tokenJSON  sql.NullString
		lastScan   sql.NullString
		createdRaw string
		updatedRaw string
	)

	if err := scanner.Scan(
		&id,
		&name,
		&folderType,
		&path,
		&enabled,
		&tokenJSON,
		&lastScan,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	folder := &Folder{
		ID:        id,
		Name:      name,
		Type:      FolderType(folderType),
		Path:      path,
		Enabled:   enabled != 0,
		TokenJSON: tokenJSON.String,
	}
	if lastScan.Valid {
		if t, err := parseTimeString(lastScan.String); err == nil {
			folder.LastScanAt = &t
		}
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		folder.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		folder.UpdatedAt = t
	}
	return folder, nil
}
