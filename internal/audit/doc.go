// Package audit records activity events off the hot path.
//
// Recorder.Record never blocks and never fails the operation that produced
// the event: entries go into a bounded buffer drained by a single goroutine
// into the store and the structured log. When producers outrun the drain,
// the oldest buffered entry is dropped and counted rather than stalling a
// scan or a transfer.
package audit
