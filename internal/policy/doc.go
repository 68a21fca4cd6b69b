// Package policy resolves what the automation is allowed to do right now
// from three inputs: the user's preferences, the feature switches, and the
// safety caps that bound both. Resolution is pure and total; malformed input
// is clamped, never rejected.
package policy
