package daemon

import (
	"context"
	"log/slog"

	"ferry/internal/config"
	"ferry/internal/drives"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/notifications"
	"ferry/internal/records"
	"ferry/internal/runner"
	"ferry/internal/vpn"
)

// Pass wires connectivity, storage verification, record loading, the run
// coordinator, and notifications into one schedulable unit. The CLI's run
// command and the daemon's schedule loop both execute passes through it.
type Pass struct {
	cfg      *config.Config
	coord    *runner.Coordinator
	source   records.Source
	vpn      vpn.Provider
	notifier notifications.Service
	logger   *slog.Logger
}

// NewPass assembles a pass from the shared dependencies.
func NewPass(cfg *config.Config, store *ledger.Store, source records.Source, logger *slog.Logger) *Pass {
	return &Pass{
		cfg:      cfg,
		coord:    runner.New(cfg, store, logger),
		source:   source,
		vpn:      vpn.NewProvider(cfg, logger),
		notifier: notifications.NewService(cfg),
		logger:   logging.NewComponentLogger(logger, "pass"),
	}
}

// Execute runs one full pass: connectivity, storage checks, record load, the
// coordinator, then the completion notification. Preflight and structural
// failures are notified and returned; batch-level failures live inside the
// returned summary.
func (p *Pass) Execute(ctx context.Context) (*runner.RunSummary, error) {
	if err := p.vpn.EnsureConnected(ctx); err != nil {
		p.logger.Error("vpn connectivity failed", logging.Error(err))
		_ = p.notifier.NotifyError(ctx, err, "connectivity")
		return nil, err
	}

	if err := drives.Summarize(drives.VerifyAll(p.cfg)); err != nil {
		p.logger.Error("storage verification failed", logging.Error(err))
		_ = p.notifier.NotifyError(ctx, err, "storage")
		return nil, err
	}

	recs, err := p.source.LoadRecords(ctx)
	if err != nil {
		p.logger.Error("record load failed", logging.Error(err))
		_ = p.notifier.NotifyError(ctx, err, "records")
		return nil, err
	}
	_ = p.notifier.NotifyRunStarted(ctx, len(recs))

	summary, err := p.coord.RunOnce(ctx, recs)
	if err != nil {
		_ = p.notifier.NotifyError(ctx, err, "transfer run")
		return nil, err
	}

	_ = p.notifier.NotifyRunCompleted(ctx,
		summary.Completed, summary.Failed, summary.Skipped,
		summary.BytesCopied, summary.Elapsed)
	return summary, nil
}
