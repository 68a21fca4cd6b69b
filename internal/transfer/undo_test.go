package transfer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shelf/internal/services"
	"shelf/internal/testsupport"
)

func TestUndoRedoMoveCycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "photo.jpg")
	testsupport.WriteFile(t, source, 256)
	destination := filepath.Join(cfg.Folders.DocumentsDir, "Camera", "photo.jpg")

	if err := svc.Move(ctx, source, destination); err != nil {
		t.Fatalf("Move: %v", err)
	}

	undone, err := svc.UndoLast(ctx)
	if err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if !undone.Undone {
		t.Fatalf("ledger entry not flagged undone")
	}
	if got := fileSize(t, source); got != 256 {
		t.Fatalf("source size after undo = %d, want 256", got)
	}
	if _, err := os.Lstat(destination); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("destination still present after undo")
	}

	redone, err := svc.RedoLast(ctx)
	if err != nil {
		t.Fatalf("RedoLast: %v", err)
	}
	if redone.Undone {
		t.Fatalf("ledger entry still flagged undone after redo")
	}
	if got := fileSize(t, destination); got != 256 {
		t.Fatalf("destination size after redo = %d, want 256", got)
	}
	if _, err := os.Lstat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after redo")
	}
}

func TestUndoRestoresTrashedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "scratch.txt")
	testsupport.WriteFile(t, source, 32)

	if err := svc.Delete(ctx, source); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	undone, err := svc.UndoLast(ctx)
	if err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if got := fileSize(t, source); got != 32 {
		t.Fatalf("restored size = %d, want 32", got)
	}
	if _, err := os.Lstat(undone.DestinationPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("trash copy still present after undo")
	}

	redone, err := svc.RedoLast(ctx)
	if err != nil {
		t.Fatalf("RedoLast: %v", err)
	}
	if got := fileSize(t, redone.DestinationPath); got != 32 {
		t.Fatalf("re-trashed size = %d, want 32", got)
	}
	if _, err := os.Lstat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after redo")
	}
}

func TestUndoCopyRemovesDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "manual.pdf")
	testsupport.WriteFile(t, source, 128)
	destination := filepath.Join(cfg.Folders.DocumentsDir, "manual.pdf")

	if err := svc.Copy(ctx, source, destination); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	if _, err := svc.UndoLast(ctx); err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if _, err := os.Lstat(destination); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("duplicate still present after undo")
	}
	if got := fileSize(t, source); got != 128 {
		t.Fatalf("source disturbed by copy undo: size = %d", got)
	}

	if _, err := svc.RedoLast(ctx); err != nil {
		t.Fatalf("RedoLast: %v", err)
	}
	if got := fileSize(t, destination); got != 128 {
		t.Fatalf("duplicate size after redo = %d, want 128", got)
	}
}

func TestUndoRedoEmptyLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	if _, err := svc.UndoLast(ctx); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("empty undo should classify as not found, got %v", err)
	}
	if _, err := svc.RedoLast(ctx); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("empty redo should classify as not found, got %v", err)
	}
}

func TestNewTransferClearsRedoHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	first := filepath.Join(cfg.Folders.DownloadsDir, "a.txt")
	second := filepath.Join(cfg.Folders.DownloadsDir, "b.txt")
	testsupport.WriteFile(t, first, 8)
	testsupport.WriteFile(t, second, 8)

	if err := svc.Move(ctx, first, filepath.Join(cfg.Folders.DocumentsDir, "a.txt")); err != nil {
		t.Fatalf("Move first: %v", err)
	}
	if _, err := svc.UndoLast(ctx); err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if err := svc.Move(ctx, second, filepath.Join(cfg.Folders.DocumentsDir, "b.txt")); err != nil {
		t.Fatalf("Move second: %v", err)
	}

	if _, err := svc.RedoLast(ctx); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("redo should be cleared by a new transfer, got %v", err)
	}
}

func TestLedgerTrimmedToConfiguredLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Safety.UndoHistoryLimit = 2
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	names := []string{"one.txt", "two.txt", "three.txt"}
	for _, name := range names {
		source := filepath.Join(cfg.Folders.DownloadsDir, name)
		testsupport.WriteFile(t, source, 8)
		if err := svc.Move(ctx, source, filepath.Join(cfg.Folders.DocumentsDir, name)); err != nil {
			t.Fatalf("Move %s: %v", name, err)
		}
	}

	entries, err := st.RecentTransfers(ctx, 10)
	if err != nil {
		t.Fatalf("RecentTransfers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(entries))
	}
	for _, entry := range entries {
		if filepath.Base(entry.SourcePath) == "one.txt" {
			t.Fatalf("oldest entry survived the trim")
		}
	}
}

func TestUndoAfterTrimOnlyReachesKeptEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Safety.UndoHistoryLimit = 1
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	for _, name := range []string{"early.txt", "late.txt"} {
		source := filepath.Join(cfg.Folders.DownloadsDir, name)
		testsupport.WriteFile(t, source, 8)
		if err := svc.Move(ctx, source, filepath.Join(cfg.Folders.DocumentsDir, name)); err != nil {
			t.Fatalf("Move %s: %v", name, err)
		}
	}

	entry, err := svc.UndoLast(ctx)
	if err != nil {
		t.Fatalf("UndoLast: %v", err)
	}
	if filepath.Base(entry.SourcePath) != "late.txt" {
		t.Fatalf("undid %q, want the latest move", entry.SourcePath)
	}
	if _, err := svc.UndoLast(ctx); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("trimmed entry should be unreachable, got %v", err)
	}
}
