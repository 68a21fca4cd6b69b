package bookmarks_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shelf/internal/bookmarks"
	"shelf/internal/logging"
	"shelf/internal/services"
	"shelf/internal/store"
	"shelf/internal/testsupport"
)

func TestEnsureDefaultsRegistersRoots(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	ctx := context.Background()
	if err := provider.EnsureDefaults(ctx, cfg); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}

	folders, err := st.Folders(ctx)
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) != 3 {
		t.Fatalf("expected 3 default folders, got %d", len(folders))
	}
	for _, folder := range folders {
		if folder.TokenJSON == "" {
			t.Fatalf("folder %s has no token", folder.Name)
		}
		if !folder.Enabled {
			t.Fatalf("folder %s should default to enabled", folder.Name)
		}
	}

	downloads, err := st.GetFolderByName(ctx, "Downloads")
	if err != nil || downloads == nil {
		t.Fatalf("GetFolderByName: folder=%v err=%v", downloads, err)
	}
	if downloads.Type != store.FolderDownloads || downloads.Path != cfg.Folders.DownloadsDir {
		t.Fatalf("unexpected downloads registration: %#v", downloads)
	}
}

func TestEnsureDefaultsKeepsExistingToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	ctx := context.Background()
	if err := provider.EnsureDefaults(ctx, cfg); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	before, err := st.GetFolderByName(ctx, "Downloads")
	if err != nil {
		t.Fatalf("GetFolderByName: %v", err)
	}

	if err := provider.EnsureDefaults(ctx, cfg); err != nil {
		t.Fatalf("EnsureDefaults again: %v", err)
	}
	after, err := st.GetFolderByName(ctx, "Downloads")
	if err != nil {
		t.Fatalf("GetFolderByName after: %v", err)
	}
	if after.TokenJSON != before.TokenJSON {
		t.Fatal("expected token untouched on repeat run")
	}
}

func TestResolveAndEnumerate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	ctx := context.Background()
	if err := provider.EnsureDefaults(ctx, cfg); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	folder, err := st.GetFolderByName(ctx, "Downloads")
	if err != nil {
		t.Fatalf("GetFolderByName: %v", err)
	}

	testsupport.WriteFile(t, filepath.Join(folder.Path, "invoice.PDF"), 2048)
	if err := os.Mkdir(filepath.Join(folder.Path, "subdir"), 0o755); err != nil {
		t.Fatalf("mkdir subdir: %v", err)
	}
	if err := os.Symlink("/etc/passwd", filepath.Join(folder.Path, "sneaky")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	handle, err := provider.Resolve(folder)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer handle.Close()

	entries, err := handle.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	byName := make(map[string]bookmarks.Entry, len(entries))
	for _, entry := range entries {
		byName[entry.Name] = entry
	}

	pdf, ok := byName["invoice.PDF"]
	if !ok {
		t.Fatalf("expected invoice.PDF in entries: %#v", entries)
	}
	if !pdf.IsRegular || pdf.Extension != "pdf" || pdf.SizeBytes != 2048 {
		t.Fatalf("unexpected entry: %#v", pdf)
	}
	if pdf.ModifiedAt.IsZero() {
		t.Fatal("expected modification time recorded")
	}

	sub, ok := byName["subdir"]
	if !ok || !sub.IsDir {
		t.Fatalf("expected subdir reported as directory: %#v", sub)
	}

	link, ok := byName["sneaky"]
	if !ok {
		t.Fatal("expected symlink listed")
	}
	if link.IsRegular || link.IsDir {
		t.Fatalf("symlink must not be reported as regular or directory: %#v", link)
	}
}

func TestResolveRejectsMissingToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	folder := testsupport.SeedFolder(t, st, "Downloads", store.FolderDownloads, cfg.Folders.DownloadsDir)
	if _, err := provider.Resolve(folder); err == nil {
		t.Fatal("expected error for folder without token")
	} else if !services.IsSecurity(err) {
		t.Fatalf("expected security classification, got %v", err)
	}
}

func TestResolveRejectsMalformedToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	folder := testsupport.SeedFolder(t, st, "Downloads", store.FolderDownloads, cfg.Folders.DownloadsDir)
	folder.TokenJSON = "{not json"
	if _, err := provider.Resolve(folder); err == nil {
		t.Fatal("expected error for malformed token")
	} else if !services.IsSecurity(err) {
		t.Fatalf("expected security classification, got %v", err)
	}
}

func TestResolveRejectsPathMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	other := t.TempDir()
	token, err := bookmarks.IssueToken(other)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	tokenJSON, err := token.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	folder := testsupport.SeedFolder(t, st, "Downloads", store.FolderDownloads, cfg.Folders.DownloadsDir)
	folder.TokenJSON = tokenJSON

	if _, err := provider.Resolve(folder); err == nil {
		t.Fatal("expected error for token issued elsewhere")
	} else if !services.IsSecurity(err) {
		t.Fatalf("expected security classification, got %v", err)
	}
}

func TestResolveRejectsStaleToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	dir := filepath.Join(t.TempDir(), "watched")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	token, err := bookmarks.IssueToken(dir)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	tokenJSON, err := token.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Replace the directory so the inode changes under the same path.
	if err := os.Remove(dir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("recreate: %v", err)
	}

	folder := testsupport.SeedFolder(t, st, "Watched", store.FolderCustom, dir)
	folder.TokenJSON = tokenJSON

	if _, err := provider.Resolve(folder); err == nil {
		t.Fatal("expected error for stale token")
	} else if !services.IsSecurity(err) {
		t.Fatalf("expected security classification, got %v", err)
	}
}

func TestResolveReportsMissingFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	dir := filepath.Join(t.TempDir(), "vanishing")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	token, err := bookmarks.IssueToken(dir)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	tokenJSON, err := token.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := os.Remove(dir); err != nil {
		t.Fatalf("remove: %v", err)
	}

	folder := testsupport.SeedFolder(t, st, "Vanishing", store.FolderCustom, dir)
	folder.TokenJSON = tokenJSON

	_, err = provider.Resolve(folder)
	if err == nil {
		t.Fatal("expected error for missing folder")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found classification, got %v", err)
	}
}

func TestRefreshReissuesToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := bookmarks.NewProvider(st, logging.NewNop())

	ctx := context.Background()
	if err := provider.EnsureDefaults(ctx, cfg); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	folder, err := st.GetFolderByName(ctx, "Desktop")
	if err != nil {
		t.Fatalf("GetFolderByName: %v", err)
	}

	refreshed, err := provider.Refresh(ctx, folder)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.TokenJSON == folder.TokenJSON {
		t.Fatal("expected a fresh token")
	}
	if _, err := provider.Resolve(refreshed); err != nil {
		t.Fatalf("Resolve after refresh: %v", err)
	}
}
