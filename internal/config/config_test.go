package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shelf/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "shelf")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Folders.DownloadsDir != filepath.Join(tempHome, "Downloads") {
		t.Fatalf("unexpected downloads dir: %q", cfg.Folders.DownloadsDir)
	}
	if cfg.Folders.OrganizeRoot != tempHome {
		t.Fatalf("unexpected organize root: %q", cfg.Folders.OrganizeRoot)
	}
	if cfg.Automation.Mode != config.ModeScanOnly {
		t.Fatalf("unexpected default mode: %q", cfg.Automation.Mode)
	}
	if cfg.Features.AutoOrganize {
		t.Fatal("expected auto-organize feature disabled by default")
	}
	if cfg.Safety.UndoHistoryLimit != 20 {
		t.Fatalf("unexpected undo history limit: %d", cfg.Safety.UndoHistoryLimit)
	}
	if cfg.Predictions.ConfidenceThreshold != 0.7 {
		t.Fatalf("unexpected confidence threshold: %v", cfg.Predictions.ConfidenceThreshold)
	}
	if len(cfg.Folders.Ignore) == 0 {
		t.Fatal("expected default ignore globs")
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "shelf.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.SocketPath() != filepath.Join(wantData, "shelf.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.TrashDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shelf.toml")

	type payload struct {
		Folders struct {
			Watch []string `toml:"watch"`
		} `toml:"folders"`
		Automation struct {
			Mode                string `toml:"mode"`
			ScanIntervalMinutes int    `toml:"scan_interval_minutes"`
		} `toml:"automation"`
		Safety struct {
			UndoHistoryLimit int `toml:"undo_history_limit"`
		} `toml:"safety"`
	}
	custom := payload{}
	custom.Folders.Watch = []string{filepath.Join(tempDir, "inbox")}
	custom.Automation.Mode = "scan_and_organize"
	custom.Automation.ScanIntervalMinutes = 30
	custom.Safety.UndoHistoryLimit = 5
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Automation.Mode != config.ModeScanAndOrganize {
		t.Fatalf("expected mode override, got %q", cfg.Automation.Mode)
	}
	if cfg.Automation.ScanIntervalMinutes != 30 {
		t.Fatalf("expected interval 30, got %d", cfg.Automation.ScanIntervalMinutes)
	}
	if cfg.Safety.UndoHistoryLimit != 5 {
		t.Fatalf("expected undo limit 5, got %d", cfg.Safety.UndoHistoryLimit)
	}
	if len(cfg.Folders.Watch) != 1 || cfg.Folders.Watch[0] != filepath.Join(tempDir, "inbox") {
		t.Fatalf("unexpected watch list: %v", cfg.Folders.Watch)
	}
}

func TestModeAliasesNormalize(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shelf.toml")
	if err := os.WriteFile(configPath, []byte("[automation]\nmode = \"auto\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Automation.Mode != config.ModeScanAndOrganize {
		t.Fatalf("expected alias to normalize, got %q", cfg.Automation.Mode)
	}
}

func TestEnvFallbacks(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shelf.toml")
	if err := os.WriteFile(configPath, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SHELF_NTFY_TOPIC", "env-topic")
	t.Setenv("SHELF_PREDICT_ENDPOINT", "http://127.0.0.1:8750/predict")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "env-topic" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Predictions.Endpoint != "http://127.0.0.1:8750/predict" {
		t.Fatalf("expected predict endpoint from env, got %q", cfg.Predictions.Endpoint)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "scan_interval_minutes") {
		t.Fatalf("sample config missing automation knobs: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Automation.Mode != config.ModeScanOnly {
		t.Fatalf("expected sample mode scan_only, got %q", cfg.Automation.Mode)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Automation.Mode = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	cfg = config.Default()
	cfg.Automation.ScanIntervalMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive scan interval")
	}

	cfg = config.Default()
	cfg.Safety.MaxScanIntervalMinutes = cfg.Safety.MinScanIntervalMinutes - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max interval below min")
	}

	cfg = config.Default()
	cfg.Predictions.ConfidenceThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range confidence threshold")
	}

	cfg = config.Default()
	cfg.Features.Predictions = true
	cfg.Predictions.Endpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when predictions enabled without endpoint")
	}
}
