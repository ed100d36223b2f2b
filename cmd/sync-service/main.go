package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/handlers"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/reconcile"
	"bitbucket.org/mmdatafocus/telco_backend/tombstone"
	"bitbucket.org/mmdatafocus/telco_backend/workflow"
)

const (
	defaultPort     = "8080"
	orderLockTTL    = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	port := os.Getenv("SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Routes exist from the start; until dependencies are attached app endpoints answer 503.
	h := handlers.New(nil, nil, logger)
	r := gin.New()
	r.Use(handlers.CorrelationId())
	r.Use(handlers.Readiness(h.Ready))
	r.Use(handlers.Cors())
	r.Use(handlers.Actor())
	r.Use(handlers.ErrorLogger(logger))
	r.Use(gin.Recovery())
	h.Register(r)
	r.NoRoute(handlers.NotFound)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	defer func() { _ = config.CloseDB() }()
	if config.EnvBoolDefault("REDIS_ENABLED", true) {
		config.ConnectRedisWithRetry(sigCtx)
		defer config.CloseRedis()
	}
	defer config.ClosePubSub()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	store, err := tombstone.NewStoreFromEnv(config.GetDB(), config.GetRedisDB(), logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "tombstone"}).Fatal(err)
	}
	reconciler := reconcile.New(models.GormEntityStore{}, store,
		reconcile.WithLocker(reconcile.NewRedisLocker(config.GetRedisLock(), orderLockTTL)),
		reconcile.WithLogger(logger),
	)
	h.Attach(workflow.NewOrchestrator(reconciler, models.GormEntityStore{}, logger), store)

	logger.WithFields(logrus.Fields{
		"port":           port,
		"syncOnWrite":    config.SyncOnWriteEnabled(),
		"backfillPubSub": config.SyncBackfillViaPubSub(),
	}).Info("sync service ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
