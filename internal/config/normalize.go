package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFolders(); err != nil {
		return err
	}
	c.normalizeAutomation()
	c.normalizeSafety()
	if err := c.normalizePredictions(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TrashDir) == "" {
		c.Paths.TrashDir = defaultTrashDir
	}
	if c.Paths.TrashDir, err = expandPath(c.Paths.TrashDir); err != nil {
		return fmt.Errorf("paths.trash_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFolders() error {
	var err error
	if c.Folders.DownloadsDir, err = expandPath(c.Folders.DownloadsDir); err != nil {
		return fmt.Errorf("folders.downloads_dir: %w", err)
	}
	if c.Folders.DesktopDir, err = expandPath(c.Folders.DesktopDir); err != nil {
		return fmt.Errorf("folders.desktop_dir: %w", err)
	}
	if c.Folders.DocumentsDir, err = expandPath(c.Folders.DocumentsDir); err != nil {
		return fmt.Errorf("folders.documents_dir: %w", err)
	}
	if strings.TrimSpace(c.Folders.OrganizeRoot) == "" {
		c.Folders.OrganizeRoot = defaultOrganizeRoot
	}
	if c.Folders.OrganizeRoot, err = expandPath(c.Folders.OrganizeRoot); err != nil {
		return fmt.Errorf("folders.organize_root: %w", err)
	}

	watch := make([]string, 0, len(c.Folders.Watch))
	seen := make(map[string]struct{}, len(c.Folders.Watch))
	for _, dir := range c.Folders.Watch {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("folders.watch: %w", err)
		}
		if _, exists := seen[expanded]; exists {
			continue
		}
		seen[expanded] = struct{}{}
		watch = append(watch, expanded)
	}
	c.Folders.Watch = watch

	if len(c.Folders.Ignore) == 0 {
		c.Folders.Ignore = append([]string(nil), defaultIgnoreGlobs...)
	} else {
		globs := make([]string, 0, len(c.Folders.Ignore))
		seenGlobs := make(map[string]struct{}, len(c.Folders.Ignore))
		for _, glob := range c.Folders.Ignore {
			trimmed := strings.TrimSpace(glob)
			if trimmed == "" {
				continue
			}
			if _, exists := seenGlobs[trimmed]; exists {
				continue
			}
			seenGlobs[trimmed] = struct{}{}
			globs = append(globs, trimmed)
		}
		c.Folders.Ignore = globs
	}
	return nil
}

func (c *Config) normalizeAutomation() {
	mode := strings.ToLower(strings.TrimSpace(c.Automation.Mode))
	switch mode {
	case "", "suggest":
		mode = defaultMode
	case "auto", "organize":
		mode = ModeScanAndOrganize
	}
	c.Automation.Mode = mode

	if c.Automation.ScanIntervalMinutes <= 0 {
		c.Automation.ScanIntervalMinutes = defaultScanIntervalMinutes
	}
	if c.Automation.ScanTimeoutSeconds <= 0 {
		c.Automation.ScanTimeoutSeconds = defaultScanTimeoutSeconds
	}
	if c.Automation.DebounceSeconds <= 0 {
		c.Automation.DebounceSeconds = defaultDebounceSeconds
	}
	if c.Automation.BacklogThreshold <= 0 {
		c.Automation.BacklogThreshold = defaultBacklogThreshold
	}
	if c.Automation.MaxConsecutiveFailures <= 0 {
		c.Automation.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if c.Automation.MaxBackoffMultiplier <= 0 {
		c.Automation.MaxBackoffMultiplier = defaultMaxBackoffMultiplier
	}
}

func (c *Config) normalizeSafety() {
	if c.Safety.MinScanIntervalMinutes <= 0 {
		c.Safety.MinScanIntervalMinutes = defaultMinScanInterval
	}
	if c.Safety.MaxScanIntervalMinutes <= 0 {
		c.Safety.MaxScanIntervalMinutes = defaultMaxScanInterval
	}
	if c.Safety.UndoHistoryLimit <= 0 {
		c.Safety.UndoHistoryLimit = defaultUndoHistoryLimit
	}
	if c.Safety.BatchDelayMillis < 0 {
		c.Safety.BatchDelayMillis = defaultBatchDelayMillis
	}
}

func (c *Config) normalizePredictions() error {
	c.Predictions.Endpoint = strings.TrimSpace(c.Predictions.Endpoint)
	if c.Predictions.Endpoint == "" {
		if value, ok := os.LookupEnv("SHELF_PREDICT_ENDPOINT"); ok {
			c.Predictions.Endpoint = strings.TrimSpace(value)
		}
	}
	if c.Predictions.TimeoutSeconds <= 0 {
		c.Predictions.TimeoutSeconds = defaultPredictTimeoutSeconds
	}
	if c.Predictions.ConfidenceThreshold == 0 {
		c.Predictions.ConfidenceThreshold = defaultConfidenceThreshold
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SHELF_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = defaultNotifyDedupSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
