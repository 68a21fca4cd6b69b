package testsupport

import (
	"context"
	"testing"
	"time"

	"shelf/internal/config"
	"shelf/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedFolder registers a watched folder for tests using the provided store.
func SeedFolder(t testing.TB, st *store.Store, name string, folderType store.FolderType, path string) *store.Folder {
	t.Helper()

	folder, err := st.UpsertFolder(context.Background(), &store.Folder{
		Name:    name,
		Type:    folderType,
		Path:    path,
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("store.UpsertFolder: %v", err)
	}
	return folder
}

// SeedRecord inserts a discovered file row for tests.
func SeedRecord(t testing.TB, st *store.Store, folderID int64, path, name, extension string, size int64) *store.FileRecord {
	t.Helper()

	record, err := st.UpsertRecord(context.Background(), &store.FileRecord{
		Path:           path,
		FolderID:       folderID,
		Name:           name,
		Extension:      extension,
		SizeBytes:      size,
		FileModifiedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("store.UpsertRecord: %v", err)
	}
	return record
}
