// Package transfer moves, copies, and trashes files under the scoped-access
// rules: destinations must land inside a registered folder whose token
// validates, sources must be ordinary files or directories, and nothing is
// ever silently overwritten. Completed operations land in a bounded undo
// ledger.
package transfer
