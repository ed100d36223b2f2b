package workflow

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/reconcile"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

// Reconciler is implemented by *reconcile.Reconciler.
type Reconciler interface {
	SyncQualification(ctx context.Context, q models.QualificationCheck) (reconcile.Result, error)
	SyncOrder(ctx context.Context, o models.ProductOrder) (reconcile.Result, error)
}

// DocumentSource pages historical source documents. models.GormEntityStore implements it.
type DocumentSource interface {
	ListQualifications(ctx context.Context, limit int) ([]models.QualificationCheck, error)
	ListCompletedOrders(ctx context.Context, limit int) ([]models.ProductOrder, error)
}

// Publisher hands a queued run to another instance.
type Publisher func(ctx context.Context, msg BackfillMessage) error

type Orchestrator struct {
	reconciler Reconciler
	documents  DocumentSource
	logger     *logrus.Logger
	publish    Publisher
}

func NewOrchestrator(r Reconciler, documents DocumentSource, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		reconciler: r,
		documents:  documents,
		logger:     logger,
		publish:    PublishBackfillRun,
	}
}

// WithPublisher replaces the Pub/Sub publisher.
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	if p != nil {
		o.publish = p
	}
	return o
}

// OnQualificationWritten runs one reconciliation pass after a qualification write.
// Nothing it does can fail the write: errors and panics are logged and dropped.
func (o *Orchestrator) OnQualificationWritten(ctx context.Context, q models.QualificationCheck) {
	if !config.SyncOnWriteEnabled() {
		return
	}
	ctx = withTrigger(ctx, models.SyncTriggeredEvent)
	res, err := o.syncQualification(ctx, q)
	o.logEvent(ctx, models.SourceKindQualification, q.ID, res, err)
}

// OnOrderWritten reconciles the order when it is completed. Same guarantees as OnQualificationWritten.
func (o *Orchestrator) OnOrderWritten(ctx context.Context, order models.ProductOrder) {
	if !config.SyncOnWriteEnabled() || !order.IsCompleted() {
		return
	}
	ctx = withTrigger(ctx, models.SyncTriggeredEvent)
	res, err := o.syncOrder(ctx, order)
	o.logEvent(ctx, models.SourceKindOrder, order.ID, res, err)
}

func (o *Orchestrator) syncQualification(ctx context.Context, q models.QualificationCheck) (res reconcile.Result, err error) {
	defer recoverInto(&err)
	return o.reconciler.SyncQualification(ctx, q)
}

func (o *Orchestrator) syncOrder(ctx context.Context, order models.ProductOrder) (res reconcile.Result, err error) {
	defer recoverInto(&err)
	return o.reconciler.SyncOrder(ctx, order)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("reconciliation panicked: %v\n%s", r, debug.Stack())
	}
}

func (o *Orchestrator) logEvent(ctx context.Context, sourceKind, sourceId string, res reconcile.Result, err error) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	if err != nil {
		config.LogError(o.logger, "workflow", "on-write sync", "reconciliation failed; write kept", map[string]string{
			"sourceKind":    sourceKind,
			"sourceId":      sourceId,
			"correlationId": correlationId,
		}, err)
		return
	}
	o.logger.WithFields(logrus.Fields{
		"module":        "workflow",
		"sourceKind":    sourceKind,
		"sourceId":      sourceId,
		"updated":       res.Updated,
		"skipReason":    string(res.Skip),
		"correlationId": correlationId,
	}).Info("on-write sync finished")
}

func withTrigger(ctx context.Context, trigger string) context.Context {
	if _, ok := utils.GetSyncTriggerFromContext(ctx); ok {
		return ctx
	}
	return utils.SetSyncTriggerInContext(ctx, trigger)
}
