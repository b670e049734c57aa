package ledger

import (
	"context"
	"fmt"
	"time"

	"ferry/internal/manifest"
)

// Stats aggregates ledger contents for the status command.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	row := s.db.QueryRowContext(ctx, `
        SELECT COUNT(DISTINCT run_id),
               COUNT(DISTINCT batch_id),
               COALESCE(SUM(CASE WHEN phase = ? THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN phase = ? THEN 1 ELSE 0 END), 0),
               COALESCE(MAX(created_at), '')
        FROM transitions`,
		string(PhaseCompleted), string(PhaseFailed),
	)
	var lastActivity string
	if err := row.Scan(&stats.Runs, &stats.Batches, &stats.Completed, &stats.Failed, &lastActivity); err != nil {
		return Stats{}, fmt.Errorf("aggregate ledger stats: %w", err)
	}
	if lastActivity != "" {
		if parsed, err := time.Parse(time.RFC3339, lastActivity); err == nil {
			stats.LastActivity = parsed
		}
	}

	pending, err := s.PendingIncomplete(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.Pending = int64(len(pending))

	rows, err := s.db.QueryContext(ctx,
		`SELECT manifest_json FROM transitions WHERE phase = ? AND manifest_json IS NOT NULL`,
		string(PhaseCompleted),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query completed manifests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return Stats{}, fmt.Errorf("scan completed manifest: %w", err)
		}
		m, err := manifest.DecodeJSON(encoded)
		if err != nil {
			continue
		}
		stats.BytesCopied += m.TotalBytes()
	}
	return stats, rows.Err()
}

// Prune deletes the transition histories of terminal (run, batch) pairs whose
// last activity predates cutoff. The most recent completed history of every
// batch is always kept so change detection stays intact. Prune must only run
// between passes, never while a run is in flight.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM transitions WHERE id IN (
            SELECT t.id FROM transitions t
            JOIN (
                SELECT run_id, batch_id, MAX(id) AS max_id, MAX(created_at) AS last_at
                FROM transitions GROUP BY run_id, batch_id
            ) grp ON t.run_id = grp.run_id AND t.batch_id = grp.batch_id
            WHERE grp.last_at < ?
              AND (SELECT phase FROM transitions WHERE id = grp.max_id) IN (?, ?)
              AND grp.max_id NOT IN (
                  SELECT MAX(id) FROM transitions WHERE phase = ? GROUP BY batch_id
              )
        )`,
		cutoff.UTC().Format(time.RFC3339),
		string(PhaseCompleted), string(PhaseFailed),
		string(PhaseCompleted),
	)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return res.RowsAffected()
}
