package handlers

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/tombstone"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
	"bitbucket.org/mmdatafocus/telco_backend/workflow"
)

type Handlers struct {
	orchestrator *workflow.Orchestrator
	tombstones   *tombstone.Store
	logger       *logrus.Logger
	ready        atomic.Bool
}

// New may be called with nil dependencies when routes must exist before the database is reachable.
// Attach them later and gate requests with Readiness(h.Ready).
func New(orchestrator *workflow.Orchestrator, tombstones *tombstone.Store, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = config.GetLogger()
	}
	h := &Handlers{logger: logger}
	if orchestrator != nil && tombstones != nil {
		h.Attach(orchestrator, tombstones)
	}
	return h
}

func (h *Handlers) Attach(orchestrator *workflow.Orchestrator, tombstones *tombstone.Store) {
	h.orchestrator = orchestrator
	h.tombstones = tombstones
	h.ready.Store(true)
}

func (h *Handlers) Ready() bool {
	return h.ready.Load()
}

func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/pubsub/sync-backfill", h.SyncBackfillPush())

	api := r.Group("/api")
	api.POST("/qualifications", h.CreateQualification())
	api.PUT("/qualifications/:id", h.UpdateQualification())
	api.GET("/qualifications/:id", h.GetQualification())

	api.POST("/orders", h.CreateOrder())
	api.PATCH("/orders/:id/state", h.UpdateOrderState())
	api.GET("/orders/:id", h.GetOrder())

	api.PATCH("/inventory/products/:id", h.UpdateInventoryProduct())
	api.DELETE("/inventory/products/:id", h.DeleteInventoryProduct())
	api.DELETE("/users/:id/address", h.ClearUserAddress())

	api.POST("/sync/orders", h.StartSyncRun(models.SyncRunKindOrders))
	api.POST("/sync/qualifications", h.StartSyncRun(models.SyncRunKindQualifications))
	api.GET("/sync/runs", h.ListSyncRuns())
	api.GET("/sync/runs/:id", h.GetSyncRun())
	api.GET("/sync/runs/:id/export", h.ExportSyncRun())
	api.GET("/sync/history", h.SyncHistory())
	api.POST("/sync/history/clear", h.ClearSyncHistory())
}

// fail maps known sentinel errors to client statuses and logs the rest.
func (h *Handlers) fail(c *gin.Context, funcName string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, utils.ErrInvalidInput),
		errors.Is(err, workflow.ErrLimitRequired),
		errors.Is(err, workflow.ErrUnknownRunKind):
		status = http.StatusBadRequest
	case errors.Is(err, utils.ErrorRecordNotFound),
		errors.Is(err, workflow.ErrRunNotFound):
		status = http.StatusNotFound
	default:
		config.LogError(h.logger, "handlers", funcName, c.Request.Method+" "+c.FullPath(), c.Params, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
