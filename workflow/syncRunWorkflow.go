package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

var (
	ErrUnknownRunKind = errors.New("unknown sync run kind")
	ErrRunNotFound    = errors.New("sync run not found")
)

// StartRun records a queued backfill run. With SYNC_BACKFILL_PUBSUB=true the run is published
// and processed by whichever instance receives the push; otherwise it is processed inline and
// the summary is returned.
func (o *Orchestrator) StartRun(ctx context.Context, kind string, limit int, trigger string) (*models.SyncRun, *Summary, error) {
	if kind != models.SyncRunKindOrders && kind != models.SyncRunKindQualifications {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownRunKind, kind)
	}
	limit, err := ClampLimit(limit)
	if err != nil {
		return nil, nil, err
	}
	if trigger == "" {
		trigger = models.SyncTriggeredManual
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	run := &models.SyncRun{
		Kind:          kind,
		Status:        models.SyncRunStatusQueued,
		TriggeredBy:   trigger,
		Actor:         utils.GetActorFromContext(ctx),
		CorrelationId: correlationId,
		PageLimit:     limit,
	}
	if err := models.CreateSyncRun(ctx, run); err != nil {
		return nil, nil, err
	}

	if config.SyncBackfillViaPubSub() {
		msg := BackfillMessage{RunId: run.ID, Kind: kind, CorrelationId: correlationId}
		err := o.publish(ctx, msg)
		if err == nil {
			return run, nil, nil
		}
		config.LogError(o.logger, "workflow", "StartRun", "publish failed; processing inline", msg, err)
	}
	return o.ProcessRun(ctx, run.ID)
}

// ProcessRun executes a queued run once. Finished runs and runs another worker started are
// returned unchanged with a nil summary.
func (o *Orchestrator) ProcessRun(ctx context.Context, runId uint) (*models.SyncRun, *Summary, error) {
	run, err := models.GetSyncRun(ctx, runId)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, ErrRunNotFound
	}
	if run.IsFinished() {
		return run, nil, nil
	}
	started, err := models.StartSyncRun(ctx, run)
	if err != nil {
		return nil, nil, err
	}
	if !started {
		return run, nil, nil
	}
	ctx = withTrigger(ctx, run.TriggeredBy)

	summary, backfillErr := o.backfill(ctx, run.Kind, run.PageLimit)
	if backfillErr != nil {
		summary.Failures = append(summary.Failures, Failure{
			SourceKind: run.Kind,
			Code:       ErrorCodeListFailed,
			Message:    backfillErr.Error(),
			Retryable:  true,
		})
	}
	for _, f := range summary.Failures {
		if err := models.CreateSyncError(ctx, run.ID, f.SourceKind, f.SourceId, f.Code, f.Message, f.Retryable); err != nil {
			config.LogError(o.logger, "workflow", "ProcessRun", "sync error row not recorded", f, err)
		}
	}

	run.Updated = summary.Updated
	run.Skipped = summary.Skipped
	run.Failed = summary.Failed
	run.SkipReasons = summary.SkipReasons
	run.Status = runStatus(summary, backfillErr)
	if err := models.FinishSyncRun(ctx, run); err != nil {
		return run, &summary, err
	}

	o.logger.WithFields(logrus.Fields{
		"module":  "workflow",
		"runId":   run.ID,
		"kind":    run.Kind,
		"status":  run.Status,
		"updated": run.Updated,
		"skipped": run.Skipped,
		"failed":  run.Failed,
	}).Info("sync run finished")
	return run, &summary, nil
}

func runStatus(s Summary, backfillErr error) string {
	progressed := s.Updated + s.Skipped
	switch {
	case backfillErr != nil && progressed == 0:
		return models.SyncRunStatusFailed
	case s.Failed > 0 && progressed == 0:
		return models.SyncRunStatusFailed
	case backfillErr != nil || s.Failed > 0:
		return models.SyncRunStatusPartial
	default:
		return models.SyncRunStatusSuccess
	}
}
