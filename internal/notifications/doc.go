// Package notifications delivers run lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set. Run
// and error notifications can be toggled independently; the core runner never
// imports this package — callers translate a RunSummary into the scalar
// arguments the Service takes.
package notifications
