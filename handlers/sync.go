package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/reports"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
	"bitbucket.org/mmdatafocus/telco_backend/workflow"
)

const (
	defaultRunPageSize = 20
	maxRunPageSize     = 100
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type startRunRequest struct {
	Limit int `json:"limit"`
}

type startRunResponse struct {
	Run     *models.SyncRun   `json:"run"`
	Summary *workflow.Summary `json:"summary,omitempty"`
}

// StartSyncRun records a backfill run. Inline runs answer 200 with the summary; dispatched runs answer 202.
func (h *Handlers) StartSyncRun(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		run, summary, err := h.orchestrator.StartRun(c.Request.Context(), kind, req.Limit, models.SyncTriggeredManual)
		if err != nil {
			h.fail(c, "StartSyncRun", err)
			return
		}
		status := http.StatusOK
		if summary == nil {
			status = http.StatusAccepted
		}
		c.JSON(status, startRunResponse{Run: run, Summary: summary})
	}
}

func (h *Handlers) ListSyncRuns() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultRunPageSize
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxRunPageSize)
		}
		runs, err := models.ListSyncRuns(c.Request.Context(), strings.TrimSpace(c.Query("kind")), limit)
		if err != nil {
			h.fail(c, "ListSyncRuns", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func (h *Handlers) loadRun(c *gin.Context, funcName string) (*models.SyncRun, []models.SyncError, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return nil, nil, false
	}
	ctx := c.Request.Context()
	run, err := models.GetSyncRun(ctx, uint(id))
	if err != nil {
		h.fail(c, funcName, err)
		return nil, nil, false
	}
	if run == nil {
		h.fail(c, funcName, workflow.ErrRunNotFound)
		return nil, nil, false
	}
	errs, err := models.ListSyncErrors(ctx, run.ID)
	if err != nil {
		h.fail(c, funcName, err)
		return nil, nil, false
	}
	return run, errs, true
}

func (h *Handlers) GetSyncRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		run, errs, ok := h.loadRun(c, "GetSyncRun")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "errors": errs})
	}
}

func (h *Handlers) ExportSyncRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		run, errs, ok := h.loadRun(c, "ExportSyncRun")
		if !ok {
			return
		}
		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", "attachment; filename="+reports.ExportFilename(run))
		c.Status(http.StatusOK)
		if err := reports.WriteSyncRun(c.Writer, run, errs); err != nil {
			config.LogError(h.logger, "handlers", "ExportSyncRun", "write workbook", run.ID, err)
			_ = c.Error(err)
		}
	}
}

func (h *Handlers) SyncHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := h.tombstones.History(c.Request.Context())
		if err != nil {
			h.fail(c, "SyncHistory", err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

// ClearSyncHistory forgets every tombstone and ledger entry. The next pass re-derives deleted entities.
func (h *Handlers) ClearSyncHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := h.tombstones.ClearHistory(ctx); err != nil {
			h.fail(c, "ClearSyncHistory", err)
			return
		}
		h.logger.WithFields(logrus.Fields{
			"module": "handlers",
			"actor":  utils.GetActorFromContext(ctx),
		}).Warn("sync history cleared")
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// SyncBackfillPush always answers 204 so Pub/Sub never redelivers; failures are recorded on the run.
func (h *Handlers) SyncBackfillPush() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.EnvBoolDefault("ENABLE_SYNC_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(http.StatusNoContent)
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(h.logger, "handlers", "SyncBackfillPush", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		if err := h.orchestrator.HandlePush(c.Request.Context(), body); err != nil {
			config.LogError(h.logger, "handlers", "SyncBackfillPush", "HandlePush", string(body), err)
		}
		c.Status(http.StatusNoContent)
	}
}
