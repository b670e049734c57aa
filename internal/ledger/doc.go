// Package ledger persists transfer intents and outcomes in SQLite and exposes
// the replay queries the rest of the system depends on.
//
// The Store owns every write to the transition set: the executor requests
// appends through a Handle and never mutates existing rows. Each (run, batch)
// history is append-only and monotonically ordered started → file_copied* →
// verified → completed, or terminates early at failed, so a crash at any
// point leaves a consistent, replayable history. PendingIncomplete and
// CopiedFiles reconstruct exactly where an interrupted transfer stopped;
// LatestCompletedManifest feeds change detection.
//
// Treat this package as the single source of truth for transfer durability;
// schema changes bump schemaVersion in schema.go.
package ledger
