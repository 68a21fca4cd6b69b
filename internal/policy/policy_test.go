package policy_test

import (
	"context"
	"testing"

	"shelf/internal/config"
	"shelf/internal/policy"
	"shelf/internal/testsupport"
)

func baseSettings() policy.UserSettings {
	return policy.UserSettings{
		Mode:                   config.ModeScanAndOrganize,
		ScanIntervalMinutes:    15,
		BacklogThreshold:       25,
		ConfidenceThreshold:    0.7,
		MaxConsecutiveFailures: 3,
		NotificationsEnabled:   true,
	}
}

func baseFlags() policy.FeatureFlags {
	return policy.FeatureFlags{
		Automation:      true,
		AutoOrganize:    true,
		LearnedPatterns: true,
		Predictions:     true,
		Notifications:   true,
	}
}

func baseCaps() policy.SafetyCaps {
	return policy.SafetyCaps{MinScanIntervalMinutes: 5, MaxScanIntervalMinutes: 240}
}

func TestResolveMasterSwitchForcesOff(t *testing.T) {
	flags := baseFlags()
	flags.Automation = false

	resolved := policy.Resolve(baseSettings(), flags, baseCaps())
	if resolved.Mode != policy.ModeOff {
		t.Fatalf("expected off, got %s", resolved.Mode)
	}
	if resolved.CanScan() || resolved.CanAutoOrganize() {
		t.Fatal("off mode must disable scanning and organizing")
	}
}

func TestResolveDowngradesToScanOnlyNeverOff(t *testing.T) {
	flags := baseFlags()
	flags.AutoOrganize = false

	resolved := policy.Resolve(baseSettings(), flags, baseCaps())
	if resolved.Mode != policy.ModeScanOnly {
		t.Fatalf("expected scan-only downgrade, got %s", resolved.Mode)
	}
	if !resolved.CanScan() {
		t.Fatal("downgrade must keep scanning enabled")
	}
	if resolved.CanAutoOrganize() {
		t.Fatal("downgrade must disable auto-organize")
	}
}

func TestResolveClampsInterval(t *testing.T) {
	settings := baseSettings()
	settings.ScanIntervalMinutes = 2
	resolved := policy.Resolve(settings, baseFlags(), baseCaps())
	if resolved.ScanIntervalMinutes != 5 {
		t.Fatalf("expected floor clamp to 5, got %d", resolved.ScanIntervalMinutes)
	}

	settings.ScanIntervalMinutes = 10000
	resolved = policy.Resolve(settings, baseFlags(), baseCaps())
	if resolved.ScanIntervalMinutes != 240 {
		t.Fatalf("expected ceiling clamp to 240, got %d", resolved.ScanIntervalMinutes)
	}

	// Degenerate caps are repaired, not rejected.
	resolved = policy.Resolve(settings, baseFlags(), policy.SafetyCaps{MinScanIntervalMinutes: -1, MaxScanIntervalMinutes: -1})
	if resolved.ScanIntervalMinutes != 1 {
		t.Fatalf("expected repaired caps to clamp to 1, got %d", resolved.ScanIntervalMinutes)
	}
}

func TestResolveNotificationsRequireToggleAndFlag(t *testing.T) {
	settings := baseSettings()
	flags := baseFlags()

	if !policy.Resolve(settings, flags, baseCaps()).NotificationsEnabled {
		t.Fatal("expected notifications on when both agree")
	}

	flags.Notifications = false
	if policy.Resolve(settings, flags, baseCaps()).NotificationsEnabled {
		t.Fatal("flag off must disable notifications")
	}

	flags.Notifications = true
	settings.NotificationsEnabled = false
	if policy.Resolve(settings, flags, baseCaps()).NotificationsEnabled {
		t.Fatal("user toggle off must disable notifications")
	}
}

func TestResolveClampsConfidenceThreshold(t *testing.T) {
	settings := baseSettings()
	settings.ConfidenceThreshold = 0.1
	if got := policy.Resolve(settings, baseFlags(), baseCaps()).ConfidenceThreshold; got != 0.5 {
		t.Fatalf("expected floor 0.5, got %f", got)
	}

	settings.ConfidenceThreshold = 1.8
	if got := policy.Resolve(settings, baseFlags(), baseCaps()).ConfidenceThreshold; got != 1 {
		t.Fatalf("expected ceiling 1, got %f", got)
	}
}

func TestResolveClampsMalformedInput(t *testing.T) {
	settings := baseSettings()
	settings.Mode = "turbo"
	settings.BacklogThreshold = -4
	settings.MaxConsecutiveFailures = 0

	resolved := policy.Resolve(settings, baseFlags(), baseCaps())
	if resolved.Mode != policy.ModeScanOnly {
		t.Fatalf("unknown mode must clamp to scan-only, got %s", resolved.Mode)
	}
	if resolved.BacklogThreshold != 1 {
		t.Fatalf("expected backlog clamp to 1, got %d", resolved.BacklogThreshold)
	}
	if resolved.MaxConsecutiveFailures != 1 {
		t.Fatalf("expected failure cap clamp to 1, got %d", resolved.MaxConsecutiveFailures)
	}
}

func TestResolveFromConfigAndSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoOrganize(true), testsupport.WithNtfyTopic("shelf-test"))
	st := testsupport.MustOpenStore(t, cfg)

	resolved := policy.ResolveFromConfig(cfg)
	if resolved.Mode != policy.ModeScanAndOrganize {
		t.Fatalf("expected scan-and-organize, got %s", resolved.Mode)
	}
	if !resolved.NotificationsEnabled {
		t.Fatal("topic plus flag should enable notifications")
	}
	if !resolved.PatternsEnabled {
		t.Fatal("expected learned patterns enabled by default")
	}
	if resolved.PredictionsEnabled {
		t.Fatal("predictions default off")
	}

	if err := st.SavePolicySnapshot(context.Background(), policy.Snapshot(resolved)); err != nil {
		t.Fatalf("SavePolicySnapshot: %v", err)
	}
	snapshot, err := st.LatestPolicySnapshot(context.Background())
	if err != nil {
		t.Fatalf("LatestPolicySnapshot: %v", err)
	}
	if snapshot == nil {
		t.Fatal("expected persisted snapshot")
	}
	if snapshot.Mode != string(policy.ModeScanAndOrganize) || !snapshot.CanAutoOrganize {
		t.Fatalf("unexpected snapshot: %#v", snapshot)
	}
}
