package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFolders(); err != nil {
		return err
	}
	if err := c.validateAutomation(); err != nil {
		return err
	}
	if err := c.validateSafety(); err != nil {
		return err
	}
	if err := c.validatePredictions(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFolders() error {
	if len(c.WatchedRoots()) == 0 {
		return errors.New("folders must name at least one watched directory")
	}
	if strings.TrimSpace(c.Folders.OrganizeRoot) == "" {
		return errors.New("folders.organize_root must be set")
	}
	return nil
}

func (c *Config) validateAutomation() error {
	switch c.Automation.Mode {
	case ModeOff, ModeScanOnly, ModeScanAndOrganize:
	default:
		return fmt.Errorf("automation.mode must be one of %q, %q, %q", ModeOff, ModeScanOnly, ModeScanAndOrganize)
	}
	if err := ensurePositiveMap(map[string]int{
		"automation.scan_interval_minutes":    c.Automation.ScanIntervalMinutes,
		"automation.scan_timeout_seconds":     c.Automation.ScanTimeoutSeconds,
		"automation.debounce_seconds":         c.Automation.DebounceSeconds,
		"automation.backlog_threshold":        c.Automation.BacklogThreshold,
		"automation.max_consecutive_failures": c.Automation.MaxConsecutiveFailures,
		"automation.max_backoff_multiplier":   c.Automation.MaxBackoffMultiplier,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSafety() error {
	if c.Safety.MinScanIntervalMinutes <= 0 {
		return errors.New("safety.min_scan_interval_minutes must be positive")
	}
	if c.Safety.MaxScanIntervalMinutes < c.Safety.MinScanIntervalMinutes {
		return errors.New("safety.max_scan_interval_minutes must be >= safety.min_scan_interval_minutes")
	}
	if c.Safety.UndoHistoryLimit < 1 {
		return errors.New("safety.undo_history_limit must be >= 1")
	}
	if c.Safety.BatchDelayMillis < 0 {
		return errors.New("safety.batch_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validatePredictions() error {
	if c.Predictions.ConfidenceThreshold < 0 || c.Predictions.ConfidenceThreshold > 1 {
		return errors.New("predictions.confidence_threshold must be between 0 and 1")
	}
	if c.Features.Predictions && strings.TrimSpace(c.Predictions.Endpoint) == "" {
		return errors.New("predictions.endpoint must be set when features.predictions is true (or set SHELF_PREDICT_ENDPOINT)")
	}
	if c.Predictions.TimeoutSeconds <= 0 {
		return errors.New("predictions.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
