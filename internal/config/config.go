package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon state.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	TrashDir string `toml:"trash_dir"`
}

// Folders contains the watched-folder roots and scan filters.
type Folders struct {
	DownloadsDir string   `toml:"downloads_dir"`
	DesktopDir   string   `toml:"desktop_dir"`
	DocumentsDir string   `toml:"documents_dir"`
	Watch        []string `toml:"watch"`
	Ignore       []string `toml:"ignore"`
	OrganizeRoot string   `toml:"organize_root"`
}

// Automation contains the user-facing scheduling preferences.
type Automation struct {
	Mode                   string `toml:"mode"`
	ScanIntervalMinutes    int    `toml:"scan_interval_minutes"`
	ScanTimeoutSeconds     int    `toml:"scan_timeout_seconds"`
	DebounceSeconds        int    `toml:"debounce_seconds"`
	BacklogThreshold       int    `toml:"backlog_threshold"`
	MaxConsecutiveFailures int    `toml:"max_consecutive_failures"`
	MaxBackoffMultiplier   int    `toml:"max_backoff_multiplier"`
}

// Features contains the feature switches automation policy resolves against.
type Features struct {
	Automation      bool `toml:"automation"`
	AutoOrganize    bool `toml:"auto_organize"`
	LearnedPatterns bool `toml:"learned_patterns"`
	Predictions     bool `toml:"predictions"`
	Notifications   bool `toml:"notifications"`
}

// Safety contains hard caps that bound user preferences.
type Safety struct {
	MinScanIntervalMinutes int  `toml:"min_scan_interval_minutes"`
	MaxScanIntervalMinutes int  `toml:"max_scan_interval_minutes"`
	UndoHistoryLimit       int  `toml:"undo_history_limit"`
	BatchDelayMillis       int  `toml:"batch_delay_ms"`
	VerifyChecksums        bool `toml:"verify_checksums"`
}

// Predictions contains configuration for the statistical destination predictor.
type Predictions struct {
	Endpoint            string  `toml:"endpoint"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	ScanComplete       bool   `toml:"scan_complete"`
	AutoOrganize       bool   `toml:"auto_organize"`
	Backlog            bool   `toml:"backlog"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Shelf.
//
// Configuration sections by subsystem:
//   - Paths: daemon state directories (database, logs, trash)
//   - Folders: watched-folder roots, ignore globs, organize root
//   - Automation: user scheduling preferences (mode, cadence, backoff)
//   - Features: feature switches consumed by policy resolution
//   - Safety: hard caps that clamp user preferences
//   - Predictions: statistical destination predictor endpoint
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Folders       Folders       `toml:"folders"`
	Automation    Automation    `toml:"automation"`
	Features      Features      `toml:"features"`
	Safety        Safety        `toml:"safety"`
	Predictions   Predictions   `toml:"predictions"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelf/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/shelf/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelf.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Watched folder roots are created on a best-effort basis so the daemon can
// run when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.TrashDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range c.WatchedRoots() {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(dir, 0o755)
	}
	return nil
}

// WatchedRoots returns the configured watched-folder roots in display order:
// the three standard folders first, then extra watch entries.
func (c *Config) WatchedRoots() []string {
	roots := make([]string, 0, 3+len(c.Folders.Watch))
	for _, dir := range []string{c.Folders.DownloadsDir, c.Folders.DesktopDir, c.Folders.DocumentsDir} {
		if strings.TrimSpace(dir) != "" {
			roots = append(roots, dir)
		}
	}
	roots = append(roots, c.Folders.Watch...)
	return roots
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "shelf.db")
}

// SocketPath returns the daemon control socket location inside the data directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "shelf.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "shelfd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
