package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"shelf/internal/store"
	"shelf/internal/testsupport"
)

func seedReadyRecord(t *testing.T, env *cliTestEnv, name, destination string) *store.FileRecord {
	t.Helper()

	path := filepath.Join(env.cfg.Folders.DownloadsDir, name)
	testsupport.WriteFile(t, path, 64)

	record, err := env.store.UpsertRecord(context.Background(), &store.FileRecord{
		Path:                 path,
		Name:                 name,
		Extension:            "pdf",
		SizeBytes:            64,
		Status:               store.StatusReady,
		SuggestedDestination: destination,
		SuggestionSource:     store.SourceRule,
		SuggestionConfidence: 1,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

func TestRecordsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	record := seedReadyRecord(t, env, "invoice.pdf", "Documents/Invoices")

	out, _, err := runCLI(t, []string{"records", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("records list: %v", err)
	}
	requireContains(t, out, "invoice.pdf")
	requireContains(t, out, "Documents/Invoices")

	out, _, err = runCLI(t, []string{"records", "list", "--status", "completed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("records list filtered: %v", err)
	}
	requireContains(t, out, "No tracked files")

	id := strconv.FormatInt(record.ID, 10)
	out, _, err = runCLI(t, []string{"records", "show", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("records show: %v", err)
	}
	requireContains(t, out, record.Path)

	out, _, err = runCLI(t, []string{"records", "skip", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("records skip: %v", err)
	}
	requireContains(t, out, "skipped")
}

func TestApplyUndoRedoRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)
	record := seedReadyRecord(t, env, "statement.pdf", "Documents/Bank")

	out, _, err := runCLI(t, []string{"apply"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	requireContains(t, out, "statement.pdf")

	moved := filepath.Join(env.cfg.Folders.OrganizeRoot, "Documents", "Bank", "statement.pdf")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("expected organized file at %s: %v", moved, err)
	}

	out, _, err = runCLI(t, []string{"undo"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	requireContains(t, out, "Restored")
	if _, err := os.Stat(record.Path); err != nil {
		t.Fatalf("expected file restored at %s: %v", record.Path, err)
	}

	out, _, err = runCLI(t, []string{"redo"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	requireContains(t, out, "Moved to")

	out, _, err = runCLI(t, []string{"history"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "statement.pdf")
}

func TestFoldersListAndToggle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"folders", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("folders list: %v", err)
	}
	requireContains(t, out, "Downloads")
	requireContains(t, out, "Desktop")

	out, _, err = runCLI(t, []string{"folders", "disable", "Desktop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("folders disable: %v", err)
	}
	requireContains(t, out, "disabled")

	out, _, err = runCLI(t, []string{"folders", "enable", "Desktop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("folders enable: %v", err)
	}
	requireContains(t, out, "enabled")
}

func TestRulesListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"rules", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rules list: %v", err)
	}
	requireContains(t, out, "No rules configured")
}

func TestPolicyCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"policy"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	requireContains(t, out, "Effective Policy")
	requireContains(t, out, "Mode:")
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, line := range []string{"first entry", "second entry"} {
		appendLogLine(t, env.logPath, line)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "10"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "second entry")
}

func appendLogLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
}
