// Package patterns suggests destinations learned from the user's own
// organize history. It replays pattern_events: how often each destination
// was chosen for an extension, refined by name similarity to the files that
// went there.
package patterns
