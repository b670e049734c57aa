// Package runner coordinates one full transfer pass: resume interrupted
// work, filter the record set, classify each qualifying batch, and drive the
// executor across a bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ferry/internal/config"
	"ferry/internal/detect"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/manifest"
	"ferry/internal/records"
	"ferry/internal/transfer"
)

// Failure identifies one batch that did not complete and why.
type Failure struct {
	BatchID string
	Reason  string
}

// RunSummary reports what a single pass observed and did. Batch-level
// failures are data here, not errors; only structural problems (malformed
// record source, unwritable ledger) surface as errors from RunOnce.
type RunSummary struct {
	RunID string

	New                int
	Modified           int
	DestinationMissing int
	Unchanged          int

	Resumed     int
	Completed   int
	Failed      int
	Skipped     int
	Interrupted int

	FilesCopied int
	BytesCopied int64
	Elapsed     time.Duration

	Failures []Failure
}

// Coordinator runs transfer passes against one ledger store.
type Coordinator struct {
	cfg    *config.Config
	store  *ledger.Store
	exec   *transfer.Executor
	logger *slog.Logger
}

// New builds a coordinator with an executor configured from cfg.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger) *Coordinator {
	log := logging.NewComponentLogger(logger, "runner")
	exec := transfer.NewExecutor(store, logger, transfer.Options{
		MaxCopyRetries:   cfg.Transfer.MaxCopyRetries,
		RetryBackoffBase: time.Duration(cfg.Transfer.RetryBackoffBaseMs) * time.Millisecond,
		CopyTimeout:      time.Duration(cfg.Transfer.CopyTimeoutMs) * time.Millisecond,
		VerifyChecksum:   cfg.Transfer.VerifyChecksum,
	})
	return &Coordinator{cfg: cfg, store: store, exec: exec, logger: log}
}

// workItem pairs a classified batch with the ledger handle it appends under.
// Resumed items carry the interrupted run's handle; fresh items get a new
// history under the current run ID.
type workItem struct {
	item    detect.BatchItem
	handle  *ledger.Handle
	resumed bool
}

// RunOnce executes one pass over the given records. Interrupted transfers
// from earlier runs are resumed first, then qualifying batches are classified
// and the changed ones copied across the configured worker pool. Cancellation
// checkpoints after the in-flight file and returns the partial summary.
func (c *Coordinator) RunOnce(ctx context.Context, recs []records.Record) (*RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{RunID: uuid.NewString()}
	log := c.logger.With(logging.String(logging.FieldRunID, summary.RunID))
	log.Info("run started", logging.Int("records", len(recs)))

	var work []workItem

	resumedBatches, err := c.collectResumable(ctx, summary, &work, log)
	if err != nil {
		return nil, err
	}

	batchIDs, err := records.Filter(recs, records.Criteria{
		MatchColumn: c.cfg.Filter.MatchColumn,
		MatchValue:  c.cfg.Filter.MatchValue,
		EmptyColumn: c.cfg.Filter.EmptyColumn,
	})
	if err != nil {
		return nil, err
	}

	for _, batchID := range batchIDs {
		if _, ok := resumedBatches[batchID]; ok {
			continue
		}
		item, err := detect.Classify(ctx, c.store, batchID, c.cfg.Paths.SourceRoot, c.cfg.Paths.DestinationRoot)
		if err != nil {
			if errors.Is(err, detect.ErrSourceUnreadable) {
				log.Warn("batch source unreadable",
					logging.String(logging.FieldBatchID, batchID),
					logging.Error(err))
				reason := fmt.Sprintf("source-unreadable:%s", batchID)
				if ledgerErr := c.recordUnreadable(ctx, summary.RunID, batchID, reason); ledgerErr != nil {
					return nil, ledgerErr
				}
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{BatchID: batchID, Reason: reason})
				continue
			}
			return nil, err
		}

		switch item.Classification {
		case detect.ClassificationNew:
			summary.New++
		case detect.ClassificationModified:
			summary.Modified++
		case detect.ClassificationDestinationMissing:
			summary.DestinationMissing++
		case detect.ClassificationUnchanged:
			summary.Unchanged++
			summary.Skipped++
			continue
		}

		handle, err := c.store.Begin(ctx, summary.RunID, batchID, item.Manifest)
		if err != nil {
			return nil, err
		}
		work = append(work, workItem{item: item, handle: handle})
	}

	if err := c.executeAll(ctx, work, summary, log); err != nil {
		return nil, err
	}

	summary.Elapsed = time.Since(started)
	log.Info("run finished",
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("resumed", summary.Resumed),
		logging.Int64("bytes_copied", summary.BytesCopied),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// recordUnreadable writes a started→failed history for a batch whose source
// could not be enumerated, so the failure is durable and inspectable.
func (c *Coordinator) recordUnreadable(ctx context.Context, runID, batchID, reason string) error {
	handle, err := c.store.Begin(ctx, runID, batchID, manifest.Manifest{})
	if err != nil {
		return err
	}
	return handle.RecordFailed(ctx, reason)
}

// collectResumable turns every interrupted (run, batch) history into a work
// item continuing under its original run ID. The oldest pending history per
// batch wins; later ones for the same batch are closed as superseded so they
// stop showing up as pending. Returns the batch IDs claimed by resumption so
// the main pass does not start a second history for them.
func (c *Coordinator) collectResumable(ctx context.Context, summary *RunSummary, work *[]workItem, log *slog.Logger) (map[string]string, error) {
	pending, err := c.store.PendingIncomplete(ctx)
	if err != nil {
		return nil, err
	}

	claimed := make(map[string]string, len(pending))
	for _, p := range pending {
		if winner, ok := claimed[p.BatchID]; ok {
			stale, err := c.store.Resume(ctx, p.RunID, p.BatchID)
			if err != nil {
				return nil, err
			}
			if err := stale.RecordFailed(ctx, "superseded:"+winner); err != nil {
				return nil, err
			}
			log.Info("closed superseded pending history",
				logging.String(logging.FieldBatchID, p.BatchID),
				logging.String("interrupted_run_id", p.RunID))
			continue
		}
		handle, err := c.store.Resume(ctx, p.RunID, p.BatchID)
		if err != nil {
			return nil, err
		}
		item, err := detect.Classify(ctx, c.store, p.BatchID, c.cfg.Paths.SourceRoot, c.cfg.Paths.DestinationRoot)
		if err != nil {
			if errors.Is(err, detect.ErrSourceUnreadable) {
				reason := fmt.Sprintf("source-unreadable:%s", p.BatchID)
				if ledgerErr := handle.RecordFailed(ctx, reason); ledgerErr != nil {
					return nil, ledgerErr
				}
				claimed[p.BatchID] = p.RunID
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{BatchID: p.BatchID, Reason: reason})
				continue
			}
			return nil, err
		}
		log.Info("resuming interrupted transfer",
			logging.String(logging.FieldBatchID, p.BatchID),
			logging.String("interrupted_run_id", p.RunID))
		claimed[p.BatchID] = p.RunID
		summary.Resumed++
		*work = append(*work, workItem{item: item, handle: handle, resumed: true})
	}
	return claimed, nil
}

// executeAll drives the work items across worker_pool_size workers. Files
// within a batch stay sequential inside the executor; batches run
// concurrently. The first ledger write failure cancels the remaining work.
func (c *Coordinator) executeAll(ctx context.Context, work []workItem, summary *RunSummary, log *slog.Logger) error {
	if len(work) == 0 {
		return nil
	}

	workers := c.cfg.Transfer.WorkerPoolSize
	if workers < 1 {
		workers = 1
	}
	if workers > len(work) {
		workers = len(work)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan workItem)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range items {
				outcome, err := c.exec.Execute(runCtx, w.item, w.handle)

				mu.Lock()
				if err != nil {
					if fatalErr == nil {
						fatalErr = err
					}
					mu.Unlock()
					cancel()
					continue
				}
				summary.FilesCopied += outcome.FilesCopied
				summary.BytesCopied += outcome.BytesCopied
				switch outcome.Status {
				case transfer.StatusCompleted:
					summary.Completed++
				case transfer.StatusFailed:
					summary.Failed++
					summary.Failures = append(summary.Failures, Failure{
						BatchID: w.item.BatchID,
						Reason:  outcome.Reason,
					})
				case transfer.StatusInterrupted:
					summary.Interrupted++
				}
				mu.Unlock()
			}
		}()
	}

	for _, w := range work {
		items <- w
	}
	close(items)
	wg.Wait()

	if fatalErr != nil {
		log.Error("run aborted", logging.Error(fatalErr))
		return fatalErr
	}
	return nil
}
