package daemon_test

import (
	"context"
	"path/filepath"
	"testing"

	"shelf/internal/daemon"
	"shelf/internal/logging"
	"shelf/internal/store"
	"shelf/internal/testsupport"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logPath := filepath.Join(cfg.Paths.LogDir, "shelfd.log")
	d, err := daemon.Bootstrap(cfg, st, logging.NewNop(), logPath)
	if err != nil {
		t.Fatalf("daemon.Bootstrap: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, st
}

func TestStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail while running")
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected running status")
	}
	if !status.Scheduler.Running {
		t.Fatal("expected scheduler to be running")
	}
	if status.PID <= 0 {
		t.Fatalf("expected a PID, got %d", status.PID)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected stopped status")
	}
}

func TestStartRegistersDefaultFolders(t *testing.T) {
	d, st := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	folders, err := st.Folders(ctx)
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) == 0 {
		t.Fatal("expected default folders to be registered on start")
	}
}

func TestSetFolderEnabled(t *testing.T) {
	d, st := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	folder, err := d.SetFolderEnabled(ctx, "downloads", false)
	if err != nil {
		t.Fatalf("SetFolderEnabled: %v", err)
	}
	if folder.Enabled {
		t.Fatal("expected folder to be disabled")
	}

	stored, err := st.GetFolderByName(ctx, "downloads")
	if err != nil {
		t.Fatalf("GetFolderByName: %v", err)
	}
	if stored == nil || stored.Enabled {
		t.Fatalf("expected persisted disable, got %#v", stored)
	}

	if _, err := d.SetFolderEnabled(ctx, "no-such-folder", true); err == nil {
		t.Fatal("expected error for unknown folder")
	}
}

func TestSkipRecord(t *testing.T) {
	d, st := newDaemon(t)
	ctx := context.Background()

	folder := testsupport.SeedFolder(t, st, "inbox", store.FolderCustom, t.TempDir())
	record := testsupport.SeedRecord(t, st, folder.ID, "/inbox/notes.txt", "notes.txt", "txt", 64)

	if err := d.SkipRecord(ctx, record.ID); err != nil {
		t.Fatalf("SkipRecord: %v", err)
	}
	updated, err := st.GetRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if updated.Status != store.StatusSkipped {
		t.Fatalf("expected skipped status, got %s", updated.Status)
	}

	if err := d.SkipRecord(ctx, record.ID+999); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestLifecycleRejectsUnknownState(t *testing.T) {
	d, _ := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Lifecycle("hibernating"); err == nil {
		t.Fatal("expected unknown lifecycle state to be rejected")
	}
	if err := d.Lifecycle("backgrounded"); err != nil {
		t.Fatalf("Lifecycle: %v", err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d, _ := newDaemon(t)

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
	if message == "" {
		t.Fatal("expected explanatory message")
	}
}
