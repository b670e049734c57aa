package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ferry/internal/manifest"
)

// Handle appends the phases of one (run, batch) transfer. The transfer
// executor requests appends through it; it never mutates or deletes existing
// records. A handle is owned by a single worker and additionally serializes
// through the store's per-batch lock.
type Handle struct {
	store   *Store
	runID   string
	batchID string

	mu        sync.Mutex
	lastPhase Phase
	nextSeq   int64
}

// RunID returns the run identifier the handle appends under.
func (h *Handle) RunID() string { return h.runID }

// BatchID returns the batch identifier the handle appends under.
func (h *Handle) BatchID() string { return h.batchID }

func (h *Handle) append(ctx context.Context, phase Phase, relativePath, reason, manifestJSON string) error {
	lock := h.store.batchLock(h.batchID)
	lock.Lock()
	defer lock.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lastPhase == "" {
		if phase != PhaseStarted {
			return fmt.Errorf("%w: %s/%s: first phase must be started, got %s", ErrWrite, h.runID, h.batchID, phase)
		}
	} else if !transitionAllowed(h.lastPhase, phase) {
		return fmt.Errorf("%w: %s/%s: invalid phase transition %s -> %s", ErrWrite, h.runID, h.batchID, h.lastPhase, phase)
	}

	err := h.store.appendTransition(ctx, Transition{
		RunID:        h.runID,
		BatchID:      h.batchID,
		Seq:          h.nextSeq,
		Phase:        phase,
		RelativePath: relativePath,
		Reason:       reason,
		ManifestJSON: manifestJSON,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return err
	}
	h.lastPhase = phase
	h.nextSeq++
	return nil
}

// RecordFileCopied appends a file_copied record for one relative path. It is
// called as each file completes, giving the ledger sub-directory granularity
// for resumption after a crash.
func (h *Handle) RecordFileCopied(ctx context.Context, relativePath string) error {
	return h.append(ctx, PhaseFileCopied, relativePath, "", "")
}

// RecordVerified appends the verified record.
func (h *Handle) RecordVerified(ctx context.Context) error {
	return h.append(ctx, PhaseVerified, "", "", "")
}

// RecordCompleted appends the terminal completed record with the manifest the
// change detector compares against on later runs.
func (h *Handle) RecordCompleted(ctx context.Context, m manifest.Manifest) error {
	encoded, err := m.EncodeJSON()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return h.append(ctx, PhaseCompleted, "", "", encoded)
}

// RecordFailed appends the terminal failed record with a reason.
func (h *Handle) RecordFailed(ctx context.Context, reason string) error {
	return h.append(ctx, PhaseFailed, "", reason, "")
}
