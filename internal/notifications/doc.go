// Package notifications delivers automation events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Per-event toggles suppress categories the user does not care about, and a
// dedup window keeps repeated events (a flapping scan, the same stuck
// transfer) from spamming the topic.
//
// Extend this package if you need alternative transports; all automation code
// depends only on the simple Service interface.
package notifications
