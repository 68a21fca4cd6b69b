package automation

import "strings"

// LifecycleState mirrors the desktop session state reported by the app
// hooks. It scales the scheduled cadence without touching the user's mode
// preference.
type LifecycleState string

const (
	// StateActiveWithWindow is the foreground state; scans run at the base
	// cadence.
	StateActiveWithWindow LifecycleState = "active_with_window"
	// StateActiveWindowClosed keeps automation alive at half cadence.
	StateActiveWindowClosed LifecycleState = "active_window_closed"
	// StateBackgrounded suspends scheduled scans outright.
	StateBackgrounded LifecycleState = "backgrounded"
	// StateMenuBarOnly suspends scheduled scans outright.
	StateMenuBarOnly LifecycleState = "menu_bar_only"
)

// ParseLifecycleState normalizes a state name. Unknown names report false.
func ParseLifecycleState(value string) (LifecycleState, bool) {
	normalized := LifecycleState(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StateActiveWithWindow, StateActiveWindowClosed, StateBackgrounded, StateMenuBarOnly:
		return normalized, true
	}
	return "", false
}

// Multiplier scales the policy scan interval for this state. Zero suspends
// the schedule rather than slowing it.
func (s LifecycleState) Multiplier() int {
	switch s {
	case StateActiveWithWindow:
		return 1
	case StateActiveWindowClosed:
		return 2
	default:
		return 0
	}
}

// SchedulingAllowed reports whether scheduled scans run in this state.
// Manual triggers are gated by policy and pause, not by lifecycle.
func (s LifecycleState) SchedulingAllowed() bool {
	return s.Multiplier() > 0
}
