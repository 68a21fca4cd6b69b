// Package scanner walks the watched folders, refreshes file records, and
// attaches destination suggestions. One folder failing never aborts the
// others; a scan that outlives its deadline returns whatever it collected
// with the timeout flagged instead of discarding progress.
package scanner
