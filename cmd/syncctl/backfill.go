package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/workflow"
)

func backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Reconcile historical source documents",
		Long: `Reconcile a bounded page of historical documents. Safe to run multiple times:
synced orders, tombstoned entities and unchanged addresses are skipped.`,
	}
	cmd.AddCommand(backfillKindCmd(models.SyncRunKindOrders, "Create inventory for completed orders"))
	cmd.AddCommand(backfillKindCmd(models.SyncRunKindQualifications, "Sync user addresses from qualification checks"))
	return cmd
}

func backfillKindCmd(kind, short string) *cobra.Command {
	var (
		limit  int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			svc, err := connect(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			out := cmd.OutOrStdout()
			if dryRun {
				return previewBackfill(ctx, out, svc, kind, limit)
			}

			run, summary, err := svc.orchestrator.StartRun(ctx, kind, limit, models.SyncTriggeredManual)
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Fprintf(out, "Run %d queued for processing (status %s)\n", run.ID, run.Status)
				return nil
			}
			printSummary(out, run, summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of documents to reconcile")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the documents a backfill would visit without changing anything")
	return cmd
}

func previewBackfill(ctx context.Context, out io.Writer, svc *services, kind string, limit int) error {
	limit, err := workflow.ClampLimit(limit)
	if err != nil {
		return err
	}
	docs := models.GormEntityStore{}
	switch kind {
	case models.SyncRunKindOrders:
		orders, err := docs.ListCompletedOrders(ctx, limit)
		if err != nil {
			return err
		}
		for _, o := range orders {
			state := "pending"
			if svc.store.WasSynced(ctx, o.ID) {
				state = "synced"
			} else if svc.store.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, o.ID) {
				state = "tombstoned"
			}
			fmt.Fprintf(out, "  %s  items=%d  %s\n", o.ID, len(o.Items), state)
		}
		fmt.Fprintf(out, "\nFound %d completed orders.\n", len(orders))
	default:
		checks, err := docs.ListQualifications(ctx, limit)
		if err != nil {
			return err
		}
		for _, q := range checks {
			fmt.Fprintf(out, "  %s  state=%s\n", q.ID, q.State)
		}
		fmt.Fprintf(out, "\nFound %d qualification checks.\n", len(checks))
	}
	fmt.Fprintln(out, "[DRY RUN] No changes made. Run without --dry-run to reconcile.")
	return nil
}

func printSummary(out io.Writer, run *models.SyncRun, summary *workflow.Summary) {
	fmt.Fprintf(out, "Run %d %s: updated=%d skipped=%d failed=%d\n",
		run.ID, statusColor(run.Status).Sprint(run.Status), summary.Updated, summary.Skipped, summary.Failed)

	reasons := make([]string, 0, len(summary.SkipReasons))
	for reason := range summary.SkipReasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "  skipped %-16s %d\n", reason, summary.SkipReasons[reason])
	}
	for _, f := range summary.Failures {
		fmt.Fprintf(out, "  %s %s %s: %s\n", color.New(color.FgRed).Sprint(f.Code), f.SourceKind, f.SourceId, f.Message)
	}
}
