// Package logging assembles the structured slog loggers used across Ferry.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes shared attribute helpers so components tag log lines
// with batch and run identifiers consistently. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
