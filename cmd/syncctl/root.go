package main

import (
	"context"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/reconcile"
	"bitbucket.org/mmdatafocus/telco_backend/tombstone"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
	"bitbucket.org/mmdatafocus/telco_backend/workflow"
)

const redisConnectTimeout = 10 * time.Second

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Operate the qualification and order sync",
		Long: `syncctl runs backfills, inspects sync runs and maintains the tombstone history.

The database is selected with DB_DRIVER and the DB_* variables, the ledger with SYNC_LEDGER_DSN.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(backfillCmd())
	cmd.AddCommand(runsCmd())
	cmd.AddCommand(historyCmd())
	return cmd
}

type services struct {
	store        *tombstone.Store
	orchestrator *workflow.Orchestrator
}

// connect reuses an already configured database, otherwise connects from the environment.
func connect(ctx context.Context) (*services, error) {
	if config.GetDB() == nil {
		config.ConnectDatabaseWithRetry()
	}
	if err := models.MigrateTable(); err != nil {
		return nil, err
	}
	if config.EnvBoolDefault("REDIS_ENABLED", false) && config.GetRedisDB() == nil {
		redisCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		config.ConnectRedisWithRetry(redisCtx)
		cancel()
	}

	logger := config.GetLogger()
	store, err := tombstone.NewStoreFromEnv(config.GetDB(), config.GetRedisDB(), logger)
	if err != nil {
		return nil, err
	}
	reconciler := reconcile.New(models.GormEntityStore{}, store,
		reconcile.WithLocker(reconcile.NewRedisLocker(config.GetRedisLock(), 30*time.Second)),
		reconcile.WithLogger(logger),
	)
	return &services{
		store:        store,
		orchestrator: workflow.NewOrchestrator(reconciler, models.GormEntityStore{}, logger),
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	actor := "syncctl"
	if user := os.Getenv("USER"); user != "" {
		actor += ":" + user
	}
	return utils.SetActorInContext(cmd.Context(), actor)
}

func statusColor(status string) *color.Color {
	switch status {
	case models.SyncRunStatusSuccess:
		return color.New(color.FgGreen)
	case models.SyncRunStatusPartial:
		return color.New(color.FgYellow)
	case models.SyncRunStatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgCyan)
	}
}
