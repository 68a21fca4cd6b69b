// Package automation owns the scheduling loop: periodic scans at a
// lifecycle-scaled cadence, debounced manual triggers, failure backoff, and
// the post-scan auto-organize step.
//
// The Scheduler is a single-writer state machine. Lifecycle transitions,
// pause/resume, and scan triggers are messages into one run goroutine; no
// transition happens anywhere else. Scans execute on that goroutine too, so
// callers get an immediate return and the daemon does the work.
package automation
