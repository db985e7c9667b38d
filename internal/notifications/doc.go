// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event type
// can be muted individually from the [notifications] section. Delivery
// failures are returned to the caller, which logs them and carries on.
package notifications
