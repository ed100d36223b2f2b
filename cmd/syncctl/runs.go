package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/reports"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded backfill runs",
	}
	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsProcessCmd())
	cmd.AddCommand(runsExportCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var (
		kind  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			if _, err := connect(ctx); err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			runs, err := models.ListSyncRuns(ctx, kind, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(out, "%5d  %-14s %-8s updated=%d skipped=%d failed=%d  %s\n",
					run.ID, run.Kind, statusColor(run.Status).Sprint(run.Status),
					run.Updated, run.Skipped, run.Failed, run.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only runs of this kind (orders or qualifications)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

// runsProcessCmd drives a queued run, e.g. when the Pub/Sub push never arrived.
func runsProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <run-id>",
		Short: "Process a queued run in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunId(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			svc, err := connect(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			run, summary, err := svc.orchestrator.ProcessRun(ctx, id)
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %d already %s; nothing to do.\n", run.ID, run.Status)
				return nil
			}
			printSummary(cmd.OutOrStdout(), run, summary)
			return nil
		},
	}
}

func runsExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a run and its errors to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunId(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			if _, err := connect(ctx); err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			run, err := models.GetSyncRun(ctx, id)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %d not found", id)
			}
			errs, err := models.ListSyncErrors(ctx, id)
			if err != nil {
				return err
			}
			if output == "" {
				output = reports.ExportFilename(run)
			}
			if err := reports.SaveSyncRun(output, run, errs); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d errors)\n", output, len(errs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default sync-run-<id>-<kind>.xlsx)")
	return cmd
}

func parseRunId(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid run id %q", arg)
	}
	return uint(id), nil
}
