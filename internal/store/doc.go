// Package store persists Shelf state in SQLite: discovered file records,
// organization rules, watched folders, the transfer undo ledger, learned
// pattern events, and policy/scan diagnostics.
//
// It owns schema creation and version checks, timestamp normalization
// (RFC 3339, UTC), and the null-handling conventions for optional columns.
// All methods accept a context and return wrapped errors; callers classify
// them with the services sentinels where needed.
package store
