package transfer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"shelf/internal/bookmarks"
	"shelf/internal/config"
	"shelf/internal/logging"
	"shelf/internal/patterns"
	"shelf/internal/rules"
	"shelf/internal/services"
	"shelf/internal/store"
	"shelf/internal/testsupport"
	"shelf/internal/transfer"
)

func newService(t *testing.T, cfg *config.Config, st *store.Store) *transfer.Service {
	t.Helper()

	provider := bookmarks.NewProvider(st, logging.NewNop())
	if err := provider.EnsureDefaults(context.Background(), cfg); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	return transfer.NewService(st, provider, patterns.NewSource(st, logging.NewNop()), cfg, logging.NewNop())
}

func seedReadyRecord(t *testing.T, st *store.Store, path, destination string, source store.SuggestionSource, ruleID int64) *store.FileRecord {
	t.Helper()

	record, err := st.UpsertRecord(context.Background(), &store.FileRecord{
		Path:                 path,
		Name:                 filepath.Base(path),
		Extension:            strings.TrimPrefix(filepath.Ext(path), "."),
		SizeBytes:            64,
		Status:               store.StatusReady,
		SuggestedDestination: destination,
		SuggestionSource:     source,
		SuggestionConfidence: 1,
		MatchedRuleID:        ruleID,
	})
	if err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	return record
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}

func TestMoveCreatesParentsInsideScope(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "statement.pdf")
	testsupport.WriteFile(t, source, 128)
	destination := filepath.Join(cfg.Folders.DocumentsDir, "Bank", "2026", "statement.pdf")

	if err := svc.Move(ctx, source, destination); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := os.Lstat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after move")
	}
	if got := fileSize(t, destination); got != 128 {
		t.Fatalf("destination size = %d, want 128", got)
	}

	entry, err := st.LatestUndoable(ctx)
	if err != nil {
		t.Fatalf("LatestUndoable: %v", err)
	}
	if entry == nil {
		t.Fatalf("move left no ledger entry")
	}
	if entry.Operation != store.OpMove || entry.SourcePath != source || entry.DestinationPath != destination {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
}

func TestMoveRefusesToOverwrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "notes.txt")
	destination := filepath.Join(cfg.Folders.DocumentsDir, "notes.txt")
	testsupport.WriteFile(t, source, 64)
	testsupport.WriteFile(t, destination, 16)

	err := svc.Move(ctx, source, destination)
	if err == nil {
		t.Fatalf("Move overwrote an existing destination")
	}
	if kind, ok := transfer.KindOf(err); !ok || kind != transfer.KindDestinationExists {
		t.Fatalf("kind = %q, want %q", kind, transfer.KindDestinationExists)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("overwrite rejection should classify as validation, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatalf("overwrite rejection must not be retryable")
	}
	if got := fileSize(t, destination); got != 16 {
		t.Fatalf("destination clobbered: size = %d, want 16", got)
	}
	if got := fileSize(t, source); got != 64 {
		t.Fatalf("source disturbed: size = %d, want 64", got)
	}
}

func TestMoveRejectsSymlinkSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	target := filepath.Join(cfg.Folders.DownloadsDir, "real.pdf")
	testsupport.WriteFile(t, target, 32)
	link := filepath.Join(cfg.Folders.DownloadsDir, "shortcut.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	err := svc.Move(ctx, link, filepath.Join(cfg.Folders.DocumentsDir, "shortcut.pdf"))
	if kind, ok := transfer.KindOf(err); !ok || kind != transfer.KindSymlinkRejected {
		t.Fatalf("kind = %q, want %q (err %v)", kind, transfer.KindSymlinkRejected, err)
	}
	if !services.IsSecurity(err) {
		t.Fatalf("symlink rejection should classify as security, got %v", err)
	}
	if _, err := os.Lstat(link); err != nil {
		t.Fatalf("link removed by rejected move: %v", err)
	}
}

func TestMoveRejectsFIFOSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	pipe := filepath.Join(cfg.Folders.DownloadsDir, "stream.pdf")
	if err := unix.Mkfifo(pipe, 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	destination := filepath.Join(cfg.Folders.DocumentsDir, "stream.pdf")

	err := svc.Move(ctx, pipe, destination)
	if kind, ok := transfer.KindOf(err); !ok || kind != transfer.KindFIFORejected {
		t.Fatalf("kind = %q, want %q (err %v)", kind, transfer.KindFIFORejected, err)
	}
	if !services.IsSecurity(err) {
		t.Fatalf("fifo rejection should classify as security, got %v", err)
	}
	info, err := os.Lstat(pipe)
	if err != nil {
		t.Fatalf("fifo removed by rejected move: %v", err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		t.Fatalf("source no longer a fifo: %v", info.Mode())
	}
	if _, err := os.Lstat(destination); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("rejected move must not create the destination")
	}
}

func TestMoveOutsideWatchedFoldersRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "statement.pdf")
	testsupport.WriteFile(t, source, 64)
	destination := filepath.Join(testsupport.BaseDir(cfg), "Elsewhere", "statement.pdf")

	err := svc.Move(ctx, source, destination)
	if kind, ok := transfer.KindOf(err); !ok || kind != transfer.KindOutsideScope {
		t.Fatalf("kind = %q, want %q (err %v)", kind, transfer.KindOutsideScope, err)
	}
	if !services.IsSecurity(err) {
		t.Fatalf("out-of-scope destination should classify as security, got %v", err)
	}
	if got := fileSize(t, source); got != 64 {
		t.Fatalf("source disturbed by rejected move")
	}
}

func TestMoveReportsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	err := svc.Move(ctx,
		filepath.Join(cfg.Folders.DownloadsDir, "ghost.pdf"),
		filepath.Join(cfg.Folders.DocumentsDir, "ghost.pdf"),
	)
	if kind, ok := transfer.KindOf(err); !ok || kind != transfer.KindSourceMissing {
		t.Fatalf("kind = %q, want %q (err %v)", kind, transfer.KindSourceMissing, err)
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing source should classify as not found, got %v", err)
	}
}

func TestCopyKeepsSourceIntact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "manual.pdf")
	testsupport.WriteFile(t, source, 96)
	destination := filepath.Join(cfg.Folders.DocumentsDir, "Copies", "manual.pdf")

	if err := svc.Copy(ctx, source, destination); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if got := fileSize(t, source); got != 96 {
		t.Fatalf("source size = %d, want 96", got)
	}
	if got := fileSize(t, destination); got != 96 {
		t.Fatalf("destination size = %d, want 96", got)
	}

	entry, err := st.LatestUndoable(ctx)
	if err != nil || entry == nil {
		t.Fatalf("LatestUndoable: entry=%v err=%v", entry, err)
	}
	if entry.Operation != store.OpCopy {
		t.Fatalf("operation = %q, want %q", entry.Operation, store.OpCopy)
	}
}

func TestCopyRejectsDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "album")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	err := svc.Copy(ctx, source, filepath.Join(cfg.Folders.DocumentsDir, "album"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("directory copy should classify as validation, got %v", err)
	}
}

func TestDeleteParksInTrash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	source := filepath.Join(cfg.Folders.DownloadsDir, "old-draft.txt")
	testsupport.WriteFile(t, source, 40)

	if err := svc.Delete(ctx, source); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Lstat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after delete")
	}
	if got := fileSize(t, filepath.Join(cfg.Paths.TrashDir, "old-draft.txt")); got != 40 {
		t.Fatalf("trashed size = %d, want 40", got)
	}

	entry, err := st.LatestUndoable(ctx)
	if err != nil || entry == nil {
		t.Fatalf("LatestUndoable: entry=%v err=%v", entry, err)
	}
	if entry.Operation != store.OpDelete {
		t.Fatalf("operation = %q, want %q", entry.Operation, store.OpDelete)
	}
	if !strings.HasPrefix(entry.DestinationPath, cfg.Paths.TrashDir) {
		t.Fatalf("trash path %q outside trash dir", entry.DestinationPath)
	}

	// A second file under the same name must not collide in the trash.
	testsupport.WriteFile(t, source, 60)
	if err := svc.Delete(ctx, source); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if got := fileSize(t, filepath.Join(cfg.Paths.TrashDir, "old-draft (1).txt")); got != 60 {
		t.Fatalf("renamed trash size = %d, want 60", got)
	}
}

func TestApplyExecutesRuleSuggestion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	rule, err := st.SaveRule(ctx, &rules.Rule{
		Name:        "pdf filing",
		Enabled:     true,
		Conditions:  []rules.Condition{rules.Ext("pdf")},
		Action:      rules.ActionMove,
		Destination: "Documents/PDFs",
	})
	if err != nil {
		t.Fatalf("SaveRule: %v", err)
	}

	source := filepath.Join(cfg.Folders.DownloadsDir, "invoice-march.pdf")
	testsupport.WriteFile(t, source, 512)
	record := seedReadyRecord(t, st, source, "Documents/PDFs", store.SourceRule, rule.ID)

	if err := svc.Apply(ctx, record.ID); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	moved := filepath.Join(testsupport.BaseDir(cfg), "Documents", "PDFs", "invoice-march.pdf")
	if got := fileSize(t, moved); got != 512 {
		t.Fatalf("moved size = %d, want 512", got)
	}

	reloaded, err := st.GetRecord(ctx, record.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("GetRecord: record=%v err=%v", reloaded, err)
	}
	if reloaded.Status != store.StatusCompleted {
		t.Fatalf("status = %q, want %q", reloaded.Status, store.StatusCompleted)
	}

	events, err := st.PatternEvents(ctx, "pdf", 5)
	if err != nil {
		t.Fatalf("PatternEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("pattern events = %d, want 1", len(events))
	}
	if events[0].Destination != "Documents/PDFs" || events[0].Source != store.SourceRule {
		t.Fatalf("unexpected pattern event: %+v", events[0])
	}
}

func TestApplyHonorsDeleteAction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	rule, err := st.SaveRule(ctx, &rules.Rule{
		Name:       "purge logs",
		Enabled:    true,
		Conditions: []rules.Condition{rules.Ext("log")},
		Action:     rules.ActionDelete,
	})
	if err != nil {
		t.Fatalf("SaveRule: %v", err)
	}

	source := filepath.Join(cfg.Folders.DownloadsDir, "installer.log")
	testsupport.WriteFile(t, source, 80)
	record := seedReadyRecord(t, st, source, "", store.SourceRule, rule.ID)

	if err := svc.Apply(ctx, record.ID); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := os.Lstat(source); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("source still present after delete action")
	}
	if got := fileSize(t, filepath.Join(cfg.Paths.TrashDir, "installer.log")); got != 80 {
		t.Fatalf("trashed size = %d, want 80", got)
	}

	reloaded, err := st.GetRecord(ctx, record.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("GetRecord: record=%v err=%v", reloaded, err)
	}
	if reloaded.Status != store.StatusCompleted {
		t.Fatalf("status = %q, want %q", reloaded.Status, store.StatusCompleted)
	}

	events, err := st.PatternEvents(ctx, "log", 5)
	if err != nil {
		t.Fatalf("PatternEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("delete actions must not feed patterns, got %d events", len(events))
	}
}

func TestApplyRejectsUnactionableRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	if err := svc.Apply(ctx, 9999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown record should classify as not found, got %v", err)
	}

	source := filepath.Join(cfg.Folders.DownloadsDir, "notes.txt")
	testsupport.WriteFile(t, source, 24)
	pending := testsupport.SeedRecord(t, st, 0, source, "notes.txt", "txt", 24)

	err := svc.Apply(ctx, pending.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("pending record should classify as validation, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatalf("validation rejection must not be retryable")
	}
	if got := fileSize(t, source); got != 24 {
		t.Fatalf("file disturbed by rejected apply")
	}
}

func TestApplyBatchContinuesPastFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := newService(t, cfg, st)
	ctx := context.Background()

	missing := filepath.Join(cfg.Folders.DownloadsDir, "ghost.pdf")
	healthy := filepath.Join(cfg.Folders.DownloadsDir, "report.pdf")
	testsupport.WriteFile(t, healthy, 64)

	recordMissing := seedReadyRecord(t, st, missing, "Documents/PDFs", store.SourcePattern, 0)
	recordHealthy := seedReadyRecord(t, st, healthy, "Documents/PDFs", store.SourcePattern, 0)

	results := svc.ApplyBatch(ctx, []*store.FileRecord{recordMissing, recordHealthy})
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if kind, ok := transfer.KindOf(results[0].Err); !ok || kind != transfer.KindSourceMissing {
		t.Fatalf("first result kind = %q, want %q (err %v)", kind, transfer.KindSourceMissing, results[0].Err)
	}
	if results[1].Err != nil {
		t.Fatalf("second result failed: %v", results[1].Err)
	}

	moved := filepath.Join(testsupport.BaseDir(cfg), "Documents", "PDFs", "report.pdf")
	if got := fileSize(t, moved); got != 64 {
		t.Fatalf("moved size = %d, want 64", got)
	}

	stillReady, err := st.GetRecord(ctx, recordMissing.ID)
	if err != nil || stillReady == nil {
		t.Fatalf("GetRecord: record=%v err=%v", stillReady, err)
	}
	if stillReady.Status != store.StatusReady {
		t.Fatalf("failed record status = %q, want %q", stillReady.Status, store.StatusReady)
	}
}
