package policy

import (
	"strings"
	"time"

	"shelf/internal/config"
	"shelf/internal/store"
)

// Mode is the effective automation mode after resolution.
type Mode string

const (
	ModeOff             Mode = config.ModeOff
	ModeScanOnly        Mode = config.ModeScanOnly
	ModeScanAndOrganize Mode = config.ModeScanAndOrganize
)

// confidenceFloor is the lowest acceptance threshold the predictor may run
// with. Not user-configurable.
const confidenceFloor = 0.5

// UserSettings are the user's automation preferences as configured.
type UserSettings struct {
	Mode                   string
	ScanIntervalMinutes    int
	BacklogThreshold       int
	ConfidenceThreshold    float64
	MaxConsecutiveFailures int
	NotificationsEnabled   bool
}

// FeatureFlags are the switches that gate whole subsystems.
type FeatureFlags struct {
	Automation      bool
	AutoOrganize    bool
	LearnedPatterns bool
	Predictions     bool
	Notifications   bool
}

// SafetyCaps bound user preferences regardless of what was configured.
type SafetyCaps struct {
	MinScanIntervalMinutes int
	MaxScanIntervalMinutes int
}

// Policy is the resolved automation contract the scheduler runs under.
type Policy struct {
	Mode                   Mode
	ScanIntervalMinutes    int
	BacklogThreshold       int
	ConfidenceThreshold    float64
	MaxConsecutiveFailures int
	NotificationsEnabled   bool
	PatternsEnabled        bool
	PredictionsEnabled     bool
	ResolvedAt             time.Time
}

// CanScan reports whether scheduled scanning is permitted at all.
func (p Policy) CanScan() bool { return p.Mode != ModeOff }

// CanAutoOrganize reports whether the scheduler may apply suggestions
// without user action.
func (p Policy) CanAutoOrganize() bool { return p.Mode == ModeScanAndOrganize }

// Resolve computes the effective policy. The master automation switch
// forces mode off; a scan-and-organize preference without the auto-organize
// flag downgrades to scan-only so the user keeps visibility without action.
func Resolve(settings UserSettings, flags FeatureFlags, caps SafetyCaps) Policy {
	mode := parseMode(settings.Mode)
	if !flags.Automation {
		mode = ModeOff
	} else if mode == ModeScanAndOrganize && !flags.AutoOrganize {
		mode = ModeScanOnly
	}

	minInterval := caps.MinScanIntervalMinutes
	if minInterval < 1 {
		minInterval = 1
	}
	maxInterval := caps.MaxScanIntervalMinutes
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	interval := settings.ScanIntervalMinutes
	if interval < minInterval {
		interval = minInterval
	}
	if interval > maxInterval {
		interval = maxInterval
	}

	backlog := settings.BacklogThreshold
	if backlog < 1 {
		backlog = 1
	}

	threshold := settings.ConfidenceThreshold
	if threshold < confidenceFloor {
		threshold = confidenceFloor
	}
	if threshold > 1 {
		threshold = 1
	}

	maxFailures := settings.MaxConsecutiveFailures
	if maxFailures < 1 {
		maxFailures = 1
	}

	return Policy{
		Mode:                   mode,
		ScanIntervalMinutes:    interval,
		BacklogThreshold:       backlog,
		ConfidenceThreshold:    threshold,
		MaxConsecutiveFailures: maxFailures,
		NotificationsEnabled:   settings.NotificationsEnabled && flags.Notifications,
		PatternsEnabled:        flags.LearnedPatterns,
		PredictionsEnabled:     flags.Predictions,
		ResolvedAt:             time.Now().UTC(),
	}
}

// FromConfig maps the configuration sections onto resolution inputs. The
// notification preference is the presence of an ntfy topic.
func FromConfig(cfg *config.Config) (UserSettings, FeatureFlags, SafetyCaps) {
	settings := UserSettings{
		Mode:                   cfg.Automation.Mode,
		ScanIntervalMinutes:    cfg.Automation.ScanIntervalMinutes,
		BacklogThreshold:       cfg.Automation.BacklogThreshold,
		ConfidenceThreshold:    cfg.Predictions.ConfidenceThreshold,
		MaxConsecutiveFailures: cfg.Automation.MaxConsecutiveFailures,
		NotificationsEnabled:   strings.TrimSpace(cfg.Notifications.NtfyTopic) != "",
	}
	flags := FeatureFlags{
		Automation:      cfg.Features.Automation,
		AutoOrganize:    cfg.Features.AutoOrganize,
		LearnedPatterns: cfg.Features.LearnedPatterns,
		Predictions:     cfg.Features.Predictions,
		Notifications:   cfg.Features.Notifications,
	}
	caps := SafetyCaps{
		MinScanIntervalMinutes: cfg.Safety.MinScanIntervalMinutes,
		MaxScanIntervalMinutes: cfg.Safety.MaxScanIntervalMinutes,
	}
	return settings, flags, caps
}

// ResolveFromConfig is the common path: resolve straight from loaded config.
func ResolveFromConfig(cfg *config.Config) Policy {
	settings, flags, caps := FromConfig(cfg)
	return Resolve(settings, flags, caps)
}

// Snapshot converts a policy into its persisted diagnostic form.
func Snapshot(p Policy) *store.PolicySnapshot {
	return &store.PolicySnapshot{
		Mode:                   string(p.Mode),
		ScanIntervalMinutes:    p.ScanIntervalMinutes,
		BacklogThreshold:       p.BacklogThreshold,
		ConfidenceThreshold:    p.ConfidenceThreshold,
		MaxConsecutiveFailures: p.MaxConsecutiveFailures,
		CanScan:                p.CanScan(),
		CanAutoOrganize:        p.CanAutoOrganize(),
		NotificationsEnabled:   p.NotificationsEnabled,
		ResolvedAt:             p.ResolvedAt,
	}
}

// parseMode clamps unknown mode strings to scan-only, the conservative
// default that keeps visibility without acting.
func parseMode(value string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeOff:
		return ModeOff
	case ModeScanOnly:
		return ModeScanOnly
	case ModeScanAndOrganize:
		return ModeScanAndOrganize
	}
	return ModeScanOnly
}
