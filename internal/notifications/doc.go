// Package notifications delivers run milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Run commands depend only on the Service interface, so alternative
// transports slot in without touching pipeline code.
package notifications
