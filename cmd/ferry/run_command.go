package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/daemon"
	"ferry/internal/records/excel"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one transfer pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			source := excel.NewReader(cfg.Paths.Spreadsheet, cfg.Filter.Sheet, cfg.Filter.BatchIDColumn)
			pass := daemon.NewPass(cfg, store, source, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := pass.Execute(runCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, summary.Elapsed.Round(time.Millisecond))
			fmt.Fprintln(out, renderKeyValues("Metric", "Count", true, []kv{
				{"New", fmt.Sprintf("%d", summary.New)},
				{"Modified", fmt.Sprintf("%d", summary.Modified)},
				{"Destination missing", fmt.Sprintf("%d", summary.DestinationMissing)},
				{"Unchanged (skipped)", fmt.Sprintf("%d", summary.Skipped)},
				{"Resumed", fmt.Sprintf("%d", summary.Resumed)},
				{"Completed", fmt.Sprintf("%d", summary.Completed)},
				{"Failed", fmt.Sprintf("%d", summary.Failed)},
				{"Files copied", fmt.Sprintf("%d", summary.FilesCopied)},
				{"Bytes copied", humanize.IBytes(uint64(summary.BytesCopied))},
			}))
			for _, failure := range summary.Failures {
				fmt.Fprintf(out, "failed: %s (%s)\n", failure.BatchID, failure.Reason)
			}
			return nil
		},
	}
}
