package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
	"bitbucket.org/mmdatafocus/telco_backend/identity"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/tombstone"
)

const moduleName = "reconcile"

type Reconciler struct {
	entities EntityStore
	ledger   Ledger
	locker   Locker
	parser   *annotation.Parser
	logger   *logrus.Logger
	now      func() time.Time
	Tracer   trace.Tracer
}

type Option func(*Reconciler)

func WithLocker(l Locker) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.locker = l
		}
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func New(entities EntityStore, ledger Ledger, opts ...Option) *Reconciler {
	r := &Reconciler{
		entities: entities,
		ledger:   ledger,
		locker:   noopLocker{},
		logger:   logrus.StandardLogger(),
		now:      func() time.Time { return time.Now().UTC() },
		Tracer:   otel.Tracer("telco_backend/reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.parser = annotation.NewParser(r.logger)
	return r
}

// ReconcileQualification copies the address found on q into the matching user profile.
// It returns true when the user was updated. Missing address, missing email and unknown users
// are skips, not errors; store faults are returned.
func (r *Reconciler) ReconcileQualification(ctx context.Context, q models.QualificationCheck) (bool, error) {
	res, err := r.SyncQualification(ctx, q)
	return res.Updated, err
}

// ReconcileOrder creates one inventory product per valid line of a completed order, at most once
// per order. Repeated calls, tombstoned orders and orders another worker holds return an empty list.
func (r *Reconciler) ReconcileOrder(ctx context.Context, o models.ProductOrder) ([]models.InventoryProduct, error) {
	res, err := r.SyncOrder(ctx, o)
	return res.Created, err
}

func (r *Reconciler) SyncQualification(ctx context.Context, q models.QualificationCheck) (res Result, err error) {
	ctx, span := r.Tracer.Start(ctx, "reconcile.qualification", trace.WithAttributes(attribute.String("qualification.id", q.ID)))
	defer func() { endSpan(span, res, err) }()

	facts := r.parser.Parse(q.AnnotationInput())
	if facts.Address == nil {
		return skipped(SkipNoAddress), nil
	}
	email, ok := identity.ResolveEmail(q.IdentityDocument())
	if !ok {
		return skipped(SkipNoEmail), nil
	}

	user, err := r.entities.FindUserByEmail(ctx, email)
	if err != nil {
		return Result{}, fmt.Errorf("find user %s: %w", email, err)
	}
	if user == nil {
		return skipped(SkipUserNotFound), nil
	}
	// an operator removed the synced address of this user
	if r.ledger.IsDeleted(ctx, user.ID) {
		return skipped(SkipTombstoned), nil
	}
	if user.Address.Equal(*facts.Address) && user.AddressSourceId != nil && *user.AddressSourceId == q.ID {
		return skipped(SkipUnchanged), nil
	}

	if err := r.entities.UpdateUserAddress(ctx, user.ID, *facts.Address, q.ID, r.now()); err != nil {
		return Result{}, fmt.Errorf("update address of user %s: %w", user.ID, err)
	}
	r.logger.WithFields(logrus.Fields{
		"module":          moduleName,
		"qualificationId": q.ID,
		"userId":          user.ID,
		"district":        facts.Address.District,
	}).Info("user address synced from qualification")
	return Result{Updated: true}, nil
}

func (r *Reconciler) SyncOrder(ctx context.Context, o models.ProductOrder) (res Result, err error) {
	ctx, span := r.Tracer.Start(ctx, "reconcile.order", trace.WithAttributes(attribute.String("order.id", o.ID)))
	defer func() { endSpan(span, res, err) }()

	if !o.IsCompleted() {
		return skipped(SkipNotCompleted), nil
	}
	lines, rejected := annotation.OrderLines(o.LineItems())
	if len(lines) == 0 {
		// not marked, so a corrected order is picked up later
		return Result{Skip: SkipNoValidLines, Rejected: rejected}, nil
	}
	if r.ledger.WasSynced(ctx, o.ID) {
		return skipped(SkipAlreadySynced), nil
	}
	if r.ledger.WasSourceTombstoned(ctx, models.EntityKindInventoryProduct, o.ID) {
		return skipped(SkipTombstoned), nil
	}

	release, lockErr := r.locker.Obtain(ctx, "lock:order-sync:"+o.ID)
	if lockErr != nil {
		r.logger.WithFields(logrus.Fields{
			"module":  moduleName,
			"orderId": o.ID,
		}).Warn("could not obtain order sync lock; relying on the ledger claim: " + lockErr.Error())
	} else {
		defer release()
	}

	claimed, err := r.ledger.Claim(ctx, models.SourceKindOrder, o.ID)
	if errors.Is(err, tombstone.ErrClaimHeld) {
		return skipped(SkipClaimHeld), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("claim order %s: %w", o.ID, err)
	}
	if !claimed {
		return skipped(SkipAlreadySynced), nil
	}

	created, err := r.entities.CreateInventoryProducts(ctx, r.productsFor(o, lines))
	if err != nil {
		r.ledger.Release(ctx, o.ID, err)
		return Result{}, fmt.Errorf("create inventory for order %s: %w", o.ID, err)
	}
	for _, p := range created {
		r.ledger.MarkSynced(ctx, p.ID, o.ID)
	}

	r.logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"orderId":  o.ID,
		"products": len(created),
		"rejected": len(rejected),
	}).Info("inventory synced from order")
	return Result{Updated: true, Created: created, Rejected: rejected}, nil
}

func (r *Reconciler) productsFor(o models.ProductOrder, lines []annotation.Line) []models.InventoryProduct {
	email, _ := identity.ResolveEmail(o.IdentityDocument())
	var orderDate *time.Time
	if !o.OrderDate.IsZero() {
		d := o.OrderDate
		orderDate = &d
	}

	products := make([]models.InventoryProduct, 0, len(lines))
	for _, line := range lines {
		sourceId := o.ID
		qty := line.Quantity
		products = append(products, models.InventoryProduct{
			Name:                line.DisplayName(),
			ProductOfferingId:   line.OfferingId,
			ProductOfferingName: line.OfferingName,
			Quantity:            qty,
			UnitPrice:           line.UnitPrice,
			Status:              models.InventoryStatusActive,
			CustomerEmail:       email,
			Notes:               "Synced from order " + o.ID,
			SourceOrderId:       &sourceId,
			SyncedFromOrder:     true,
			OriginalQuantity:    &qty,
			OrderDate:           orderDate,
		})
	}
	return products
}

func endSpan(span trace.Span, res Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if res.Skip != SkipNone {
		span.SetAttributes(attribute.String("sync.skip_reason", string(res.Skip)))
	}
	span.End()
}
