// Command ferryd runs scheduled transfer passes at the configured daily
// times until terminated.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ferry/internal/config"
	"ferry/internal/daemon"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/records/excel"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewForRun(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	source := excel.NewReader(cfg.Paths.Spreadsheet, cfg.Filter.Sheet, cfg.Filter.BatchIDColumn)
	pass := daemon.NewPass(cfg, store, source, logger)

	d, err := daemon.New(cfg, pass, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited", logging.Error(err))
		os.Exit(1)
	}
}
