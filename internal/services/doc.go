// Package services provides the error-classification scheme and context
// carriers shared by every shelf component. Components wrap failures with a
// sentinel marker so boundaries (scheduler backoff, IPC responses, the CLI)
// can classify without string matching.
package services
