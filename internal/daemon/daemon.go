package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"ferry/internal/config"
	"ferry/internal/logging"
)

// Daemon runs scheduled transfer passes and enforces single-instance
// execution. Two schedulers interleaving runs over one ledger would race the
// resume logic, so the lock is mandatory.
type Daemon struct {
	cfg      *config.Config
	pass     *Pass
	schedule *Schedule
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// New constructs a daemon around an assembled pass.
func New(cfg *config.Config, pass *Pass, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || pass == nil {
		return nil, errors.New("daemon requires config and pass")
	}
	schedule, err := ParseSchedule(cfg.Schedule.DailyAt)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "ferryd.lock")
	return &Daemon{
		cfg:      cfg,
		pass:     pass,
		schedule: schedule,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run acquires the instance lock and executes passes at the scheduled times
// until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ferry daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	d.running.Store(true)
	defer d.running.Store(false)
	d.logger.Info("ferry daemon started",
		logging.String("lock", d.lockPath),
		logging.String("schedule", fmt.Sprintf("%v", d.cfg.Schedule.DailyAt)))

	for {
		next := d.schedule.Next(time.Now())
		d.logger.Info("next run scheduled", logging.String("at", next.Format(time.RFC3339)))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.Info("ferry daemon stopping")
			return nil
		case <-timer.C:
		}

		summary, err := d.pass.Execute(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Error("scheduled pass failed", logging.Error(err))
			continue
		}
		d.logger.Info("scheduled pass finished",
			logging.String(logging.FieldRunID, summary.RunID),
			logging.Int("completed", summary.Completed),
			logging.Int("failed", summary.Failed),
			logging.Int("skipped", summary.Skipped))
	}
}

// Running reports whether the daemon loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
