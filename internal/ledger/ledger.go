package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ferry/internal/config"
	"ferry/internal/manifest"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrWrite indicates the ledger could not be written. Without a durable
// intent record no transfer may proceed, so callers treat this as fatal for
// the run.
var ErrWrite = errors.New("ledger write error")

// Store is the append-only transaction ledger backed by SQLite. Appends for a
// given batch are serialized; distinct batches append concurrently. Rows are
// never updated or deleted during a run — Prune is the only deletion path and
// runs as an explicit offline maintenance command.
type Store struct {
	db   *sql.DB
	path string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open initializes or connects to the ledger database and verifies its schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "ledger.db"))
}

// OpenPath opens the ledger at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, locks: make(map[string]*sync.Mutex)}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the ledger database location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) batchLock(batchID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[batchID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[batchID] = lock
	}
	return lock
}

// Begin appends a started record for (runID, batchID) carrying the source
// manifest and returns a handle for the subsequent phases.
func (s *Store) Begin(ctx context.Context, runID, batchID string, m manifest.Manifest) (*Handle, error) {
	encoded, err := m.EncodeJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	h := &Handle{store: s, runID: runID, batchID: batchID, lastPhase: "", nextSeq: 0}
	if err := h.append(ctx, PhaseStarted, "", "", encoded); err != nil {
		return nil, err
	}
	return h, nil
}

// Resume returns a handle continuing an interrupted (runID, batchID) whose
// last record is started or file_copied. The handle appends after the highest
// recorded sequence number.
func (s *Store) Resume(ctx context.Context, runID, batchID string) (*Handle, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT seq, phase FROM transitions
         WHERE run_id = ? AND batch_id = ?
         ORDER BY seq DESC LIMIT 1`,
		runID, batchID,
	)
	var seq int64
	var phase Phase
	if err := row.Scan(&seq, &phase); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resume %s/%s: no ledger records", runID, batchID)
		}
		return nil, fmt.Errorf("resume %s/%s: %w", runID, batchID, err)
	}
	if phase != PhaseStarted && phase != PhaseFileCopied {
		return nil, fmt.Errorf("resume %s/%s: last phase %q is not resumable", runID, batchID, phase)
	}
	return &Handle{store: s, runID: runID, batchID: batchID, lastPhase: phase, nextSeq: seq + 1}, nil
}

func (s *Store) appendTransition(ctx context.Context, t Transition) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transitions (run_id, batch_id, seq, phase, relative_path, reason, manifest_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID,
		t.BatchID,
		t.Seq,
		string(t.Phase),
		nullableString(t.RelativePath),
		nullableString(t.Reason),
		nullableString(t.ManifestJSON),
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: append %s for %s/%s: %w", ErrWrite, t.Phase, t.RunID, t.BatchID, err)
	}
	return nil
}

// LatestCompletedManifest returns the manifest stored with the most recent
// completed record for batchID, or ok=false when the batch has never
// completed.
func (s *Store) LatestCompletedManifest(ctx context.Context, batchID string) (manifest.Manifest, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT manifest_json FROM transitions
         WHERE batch_id = ? AND phase = ?
         ORDER BY id DESC LIMIT 1`,
		batchID, string(PhaseCompleted),
	)
	var encoded sql.NullString
	if err := row.Scan(&encoded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("latest completed manifest for %s: %w", batchID, err)
	}
	if !encoded.Valid {
		return nil, false, fmt.Errorf("completed record for %s carries no manifest", batchID)
	}
	m, err := manifest.DecodeJSON(encoded.String)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// PendingIncomplete replays the ledger and returns every (run, batch) whose
// last record is started or file_copied, oldest first. These are the
// transfers a crash interrupted; the coordinator resumes them before starting
// new work.
func (s *Store) PendingIncomplete(ctx context.Context) ([]Pending, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.run_id, t.batch_id FROM transitions t
         JOIN (
             SELECT run_id, batch_id, MAX(id) AS max_id
             FROM transitions GROUP BY run_id, batch_id
         ) latest ON t.id = latest.max_id
         WHERE t.phase IN (?, ?)
         ORDER BY t.id`,
		string(PhaseStarted), string(PhaseFileCopied),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending transfers: %w", err)
	}
	defer rows.Close()

	var pending []Pending
	for rows.Next() {
		var p Pending
		if err := rows.Scan(&p.RunID, &p.BatchID); err != nil {
			return nil, fmt.Errorf("scan pending transfer: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// CopiedFiles returns the relative paths already recorded as file_copied for
// (runID, batchID). The executor skips these on resume.
func (s *Store) CopiedFiles(ctx context.Context, runID, batchID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT relative_path FROM transitions
         WHERE run_id = ? AND batch_id = ? AND phase = ? AND relative_path IS NOT NULL`,
		runID, batchID, string(PhaseFileCopied),
	)
	if err != nil {
		return nil, fmt.Errorf("query copied files for %s/%s: %w", runID, batchID, err)
	}
	defer rows.Close()

	copied := make(map[string]struct{})
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, fmt.Errorf("scan copied file: %w", err)
		}
		copied[rel] = struct{}{}
	}
	return copied, rows.Err()
}

// History returns every transition for batchID in append order.
func (s *Store) History(ctx context.Context, batchID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, batch_id, seq, phase, relative_path, reason, manifest_json, created_at
         FROM transitions WHERE batch_id = ? ORDER BY id`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", batchID, err)
	}
	defer rows.Close()
	return scanTransitions(rows)
}

func scanTransitions(rows *sql.Rows) ([]Transition, error) {
	var out []Transition
	for rows.Next() {
		var t Transition
		var rel, reason, manifestJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&t.ID, &t.RunID, &t.BatchID, &t.Seq, &t.Phase, &rel, &reason, &manifestJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.RelativePath = rel.String
		t.Reason = reason.String
		t.ManifestJSON = manifestJSON.String
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			t.CreatedAt = parsed
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
