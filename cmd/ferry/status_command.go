package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			lastActivity := "never"
			if !stats.LastActivity.IsZero() {
				lastActivity = stats.LastActivity.Local().Format(time.RFC3339)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues("Metric", "Value", true, []kv{
				{"Ledger", store.Path()},
				{"Runs", fmt.Sprintf("%d", stats.Runs)},
				{"Batches", fmt.Sprintf("%d", stats.Batches)},
				{"Completed transfers", fmt.Sprintf("%d", stats.Completed)},
				{"Failed transfers", fmt.Sprintf("%d", stats.Failed)},
				{"Pending (interrupted)", fmt.Sprintf("%d", stats.Pending)},
				{"Bytes copied", humanize.IBytes(uint64(stats.BytesCopied))},
				{"Last activity", lastActivity},
			}))
			return nil
		},
	}
}
