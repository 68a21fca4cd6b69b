// Package daemon coordinates the long-running shelfd process: it enforces
// single-instance execution, owns the scheduler and its collaborators, and
// exposes the operations the IPC control surface forwards to.
package daemon
