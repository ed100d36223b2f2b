package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or reset tombstones and the sync ledger",
	}
	cmd.AddCommand(historyShowCmd())
	cmd.AddCommand(historyClearCmd())
	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every tombstone and ledger entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			svc, err := connect(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			history, err := svc.store.History(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tombstones (%d)\n", len(history.Tombstones))
			for _, t := range history.Tombstones {
				fmt.Fprintf(out, "  %-18s %s  source=%s  by %s at %s\n",
					t.EntityKind, t.EntityId, t.SourceId, t.DeletedBy, t.DeletedAt.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(out, "Ledger (%d)\n", len(history.Ledger))
			for _, e := range history.Ledger {
				fmt.Fprintf(out, "  %-20s %s  %s  entities=%d\n", e.SourceKind, e.SourceId, e.Status, len(e.EntityIds))
			}
			return nil
		},
	}
}

func historyClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget all tombstones and ledger entries",
		Long: `Forget all tombstones and ledger entries. The next backfill re-creates entities
operators deleted and re-syncs every order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear sync history without --yes")
			}
			ctx := commandContext(cmd)
			svc, err := connect(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			if err := svc.store.ClearHistory(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s sync history cleared\n", color.New(color.FgGreen).Sprint("✓"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing the history")
	return cmd
}
