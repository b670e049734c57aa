package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger maintenance and inspection",
	}
	ledgerCmd.AddCommand(newLedgerPendingCommand(ctx))
	ledgerCmd.AddCommand(newLedgerPruneCommand(ctx))
	return ledgerCmd
}

func newLedgerPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List interrupted transfers awaiting resumption",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			pending, err := store.PendingIncomplete(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No interrupted transfers")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderPending(pending))
			return nil
		},
	}
}

func newLedgerPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old terminal transfer histories",
		Long: "Deletes completed and failed transfer histories whose last activity is older " +
			"than the retention window. Each batch's most recent completed history is always " +
			"kept so change detection keeps working. Never run this while a pass is in flight.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThanDays < 1 {
				return fmt.Errorf("--older-than must be at least 1 day")
			}
			_, store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			cutoff := time.Now().AddDate(0, 0, -olderThanDays)
			removed, err := store.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d ledger records older than %s\n",
				removed, cutoff.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 7, "Retention window in days")
	return cmd
}
