// Package transfer copies classified batch directories to the destination
// store and records each phase in the ledger. Copies are staged, retried with
// exponential backoff, and bounded by a per-attempt timeout; a final
// verification pass re-checks every destination file against the manifest
// before the batch completes. The source tree is never written to.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ferry/internal/detect"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/manifest"
)

// ErrCopy marks a file copy that failed after all retry attempts.
var ErrCopy = errors.New("copy failed")

// ErrVerification marks a copied file whose size or checksum does not match
// the source manifest. The destination file is left in place for inspection.
var ErrVerification = errors.New("verification mismatch")

// Status is the terminal disposition of one batch transfer attempt.
type Status string

const (
	// StatusCompleted means every file copied and verified and the ledger
	// holds the terminal completed record.
	StatusCompleted Status = "completed"
	// StatusFailed means a file exhausted its retries or failed
	// verification; the ledger holds the terminal failed record.
	StatusFailed Status = "failed"
	// StatusInterrupted means cancellation stopped the transfer between
	// files. No terminal record was written; the ledger history resumes on
	// the next run.
	StatusInterrupted Status = "interrupted"
)

// Outcome summarizes one batch transfer.
type Outcome struct {
	Status      Status
	Reason      string
	FilesCopied int
	BytesCopied int64
}

// Executor copies batch directories file by file. Files within a batch are
// copied sequentially; concurrency across batches is the coordinator's
// concern.
type Executor struct {
	store          *ledger.Store
	logger         *slog.Logger
	maxRetries     int
	backoffBase    time.Duration
	attemptTimeout time.Duration
	verifyChecksum bool
}

// Options bound the executor's retry and verification behavior.
type Options struct {
	MaxCopyRetries   int
	RetryBackoffBase time.Duration
	CopyTimeout      time.Duration
	VerifyChecksum   bool
}

// NewExecutor builds an executor writing through the given ledger store.
func NewExecutor(store *ledger.Store, logger *slog.Logger, opts Options) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.MaxCopyRetries < 1 {
		opts.MaxCopyRetries = 1
	}
	return &Executor{
		store:          store,
		logger:         logger.With(logging.String(logging.FieldComponent, "transfer")),
		maxRetries:     opts.MaxCopyRetries,
		backoffBase:    opts.RetryBackoffBase,
		attemptTimeout: opts.CopyTimeout,
		verifyChecksum: opts.VerifyChecksum,
	}
}

// Execute copies item's manifest to its destination under the given ledger
// handle. Files already recorded as copied under a resumed handle are not
// re-copied, but the verification pass still covers them: every manifest
// entry is re-checked at the destination before the batch completes.
// Item-level failures are recorded in the ledger and reported in the outcome;
// the returned error is reserved for ledger write failures, which are fatal to
// the run.
func (e *Executor) Execute(ctx context.Context, item detect.BatchItem, h *ledger.Handle) (Outcome, error) {
	log := e.logger.With(
		logging.String(logging.FieldBatchID, item.BatchID),
		logging.String(logging.FieldRunID, h.RunID()),
	)

	if ctx.Err() != nil {
		return Outcome{Status: StatusInterrupted}, nil
	}

	copied, err := e.store.CopiedFiles(ctx, h.RunID(), h.BatchID())
	if err != nil {
		return Outcome{Status: StatusFailed}, err
	}

	if err := os.MkdirAll(item.DestinationPath, 0o755); err != nil {
		reason := fmt.Sprintf("copy-error:%s", item.BatchID)
		if ledgerErr := h.RecordFailed(ctx, reason); ledgerErr != nil {
			return Outcome{Status: StatusFailed}, ledgerErr
		}
		log.Error("destination directory unavailable", logging.Error(err))
		return Outcome{Status: StatusFailed, Reason: reason}, nil
	}

	var outcome Outcome
	checksums := make(map[string]string, len(item.Manifest))
	for _, entry := range item.Manifest {
		if err := ctx.Err(); err != nil {
			log.Info("transfer interrupted",
				logging.Int("files_copied", outcome.FilesCopied),
				logging.Int("files_total", len(item.Manifest)))
			outcome.Status = StatusInterrupted
			return outcome, nil
		}
		if _, done := copied[entry.RelativePath]; done {
			continue
		}

		result, copyErr := e.copyWithRetries(ctx, item, entry, log)
		if copyErr != nil {
			if ctx.Err() != nil {
				outcome.Status = StatusInterrupted
				return outcome, nil
			}
			reason := fmt.Sprintf("copy-error:%s", entry.RelativePath)
			if ledgerErr := h.RecordFailed(ctx, reason); ledgerErr != nil {
				return outcome, ledgerErr
			}
			log.Error("batch transfer failed",
				logging.String("relative_path", entry.RelativePath),
				logging.Error(copyErr))
			outcome.Status = StatusFailed
			outcome.Reason = reason
			return outcome, nil
		}

		if err := h.RecordFileCopied(ctx, entry.RelativePath); err != nil {
			return outcome, err
		}
		outcome.FilesCopied++
		outcome.BytesCopied += result.bytesWritten
		checksums[entry.RelativePath] = result.checksum
	}

	// Verification covers every manifest entry, including files a resumed
	// handle carried over from the interrupted run: a destination file lost
	// or changed since that run must fail the batch, not complete it.
	for _, entry := range item.Manifest {
		if ctx.Err() != nil {
			outcome.Status = StatusInterrupted
			return outcome, nil
		}
		if err := e.verifyEntry(item, entry, checksums); err != nil {
			reason := fmt.Sprintf("verification-mismatch:%s", entry.RelativePath)
			if ledgerErr := h.RecordFailed(ctx, reason); ledgerErr != nil {
				return outcome, ledgerErr
			}
			log.Error("batch verification failed",
				logging.String("relative_path", entry.RelativePath),
				logging.Error(err))
			outcome.Status = StatusFailed
			outcome.Reason = reason
			return outcome, nil
		}
	}

	if err := h.RecordVerified(ctx); err != nil {
		return outcome, err
	}
	if err := h.RecordCompleted(ctx, item.Manifest); err != nil {
		return outcome, err
	}

	log.Info("batch transfer completed",
		logging.Int("files_copied", outcome.FilesCopied),
		logging.Int64("bytes_copied", outcome.BytesCopied))
	outcome.Status = StatusCompleted
	return outcome, nil
}

// copyWithRetries runs the staged copy for one file, retrying copy errors up
// to the configured attempt budget.
func (e *Executor) copyWithRetries(ctx context.Context, item detect.BatchItem, entry manifest.Entry, log *slog.Logger) (copyResult, error) {
	src := filepath.Join(item.SourcePath, filepath.FromSlash(entry.RelativePath))
	dst := filepath.Join(item.DestinationPath, filepath.FromSlash(entry.RelativePath))

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepBackoff(ctx, e.backoffBase, attempt-1); err != nil {
				return copyResult{}, err
			}
			log.Info("retrying file copy",
				logging.String("relative_path", entry.RelativePath),
				logging.Int("attempt", attempt))
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if e.attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		}
		result, err := stagedCopy(attemptCtx, src, dst)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return copyResult{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		return result, nil
	}
	return copyResult{}, fmt.Errorf("%w: %s after %d attempts: %w", ErrCopy, entry.RelativePath, e.maxRetries, lastErr)
}

// verifyEntry checks one destination file against its manifest entry. Size is
// always compared; when checksum verification is enabled the destination is
// re-hashed and compared against the sha256 recorded during the copy, or
// against a fresh hash of the source for files carried over from an
// interrupted run. A mismatching file is left in place. Mismatches are not
// retried: re-reading the same corrupt file yields the same mismatch.
func (e *Executor) verifyEntry(item detect.BatchItem, entry manifest.Entry, checksums map[string]string) error {
	dst := filepath.Join(item.DestinationPath, filepath.FromSlash(entry.RelativePath))
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVerification, entry.RelativePath, err)
	}
	if info.Size() != entry.SizeBytes {
		return fmt.Errorf("%w: %s: size %d, want %d", ErrVerification, entry.RelativePath, info.Size(), entry.SizeBytes)
	}
	if !e.verifyChecksum {
		return nil
	}
	want, ok := checksums[entry.RelativePath]
	if !ok {
		src := filepath.Join(item.SourcePath, filepath.FromSlash(entry.RelativePath))
		if want, err = hashFile(src); err != nil {
			return fmt.Errorf("%w: %s: hash source: %w", ErrVerification, entry.RelativePath, err)
		}
	}
	sum, err := hashFile(dst)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVerification, entry.RelativePath, err)
	}
	if sum != want {
		return fmt.Errorf("%w: %s: checksum mismatch", ErrVerification, entry.RelativePath)
	}
	return nil
}
