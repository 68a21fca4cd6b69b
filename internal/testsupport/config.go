package testsupport

import (
	"path/filepath"
	"testing"

	"shelf/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.TrashDir = filepath.Join(base, "trash")
	cfgVal.Folders.DownloadsDir = filepath.Join(base, "Downloads")
	cfgVal.Folders.DesktopDir = filepath.Join(base, "Desktop")
	cfgVal.Folders.DocumentsDir = filepath.Join(base, "Documents")
	cfgVal.Folders.OrganizeRoot = base
	cfgVal.Safety.BatchDelayMillis = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMode sets the automation mode on the test config.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Automation.Mode = mode
	}
}

// WithAutoOrganize flips the auto-organize feature switch. Enabling it also
// raises the requested mode so policy resolution does not downgrade the run.
func WithAutoOrganize(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Features.AutoOrganize = enabled
		if enabled {
			b.cfg.Automation.Mode = config.ModeScanAndOrganize
		}
	}
}

// WithWatch appends extra watched roots to the test config.
func WithWatch(paths ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Folders.Watch = append(b.cfg.Folders.Watch, paths...)
	}
}

// WithNtfyTopic sets the notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
