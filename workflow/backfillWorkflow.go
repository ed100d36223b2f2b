package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/models"
	"bitbucket.org/mmdatafocus/telco_backend/reconcile"
)

var ErrLimitRequired = errors.New("limit must be greater than zero")

const (
	ErrorCodeStoreFault  = "store_fault"
	ErrorCodeInvalidItem = "invalid_item"
	ErrorCodeListFailed  = "list_failed"
)

// Summary is what a backfill pass reports to operators.
type Summary struct {
	Updated     int            `json:"updated"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
	Failures    []Failure      `json:"failures,omitempty"`
}

// Failure is one per-document problem. Invalid items are reported without failing the document.
type Failure struct {
	SourceKind string `json:"source_kind"`
	SourceId   string `json:"source_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

func (s *Summary) record(sourceKind, sourceId string, res reconcile.Result, err error) {
	switch {
	case err != nil:
		s.Failed++
		s.Failures = append(s.Failures, Failure{
			SourceKind: sourceKind,
			SourceId:   sourceId,
			Code:       ErrorCodeStoreFault,
			Message:    err.Error(),
			Retryable:  true,
		})
		return
	case res.Updated:
		s.Updated++
	default:
		s.Skipped++
		if s.SkipReasons == nil {
			s.SkipReasons = map[string]int{}
		}
		s.SkipReasons[string(res.Skip)]++
	}
	for _, idx := range res.Rejected {
		s.Failures = append(s.Failures, Failure{
			SourceKind: sourceKind,
			SourceId:   sourceId,
			Code:       ErrorCodeInvalidItem,
			Message:    fmt.Sprintf("item %d has neither offering id nor offering name", idx),
		})
	}
}

// ClampLimit rejects non-positive limits and caps the rest at SYNC_BACKFILL_MAX_LIMIT.
func ClampLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, ErrLimitRequired
	}
	return min(limit, config.SyncBackfillMaxLimit()), nil
}

// BackfillQualifications reconciles a bounded page of qualifications.
func (o *Orchestrator) BackfillQualifications(ctx context.Context, limit int) (Summary, error) {
	var summary Summary
	limit, err := ClampLimit(limit)
	if err != nil {
		return summary, err
	}
	docs, err := o.documents.ListQualifications(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("list qualifications: %w", err)
	}
	for _, q := range docs {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		res, err := o.syncQualification(ctx, q)
		summary.record(models.SourceKindQualification, q.ID, res, err)
	}
	return summary, nil
}

// BackfillOrders reconciles a bounded page of completed orders.
func (o *Orchestrator) BackfillOrders(ctx context.Context, limit int) (Summary, error) {
	var summary Summary
	limit, err := ClampLimit(limit)
	if err != nil {
		return summary, err
	}
	orders, err := o.documents.ListCompletedOrders(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("list completed orders: %w", err)
	}
	for _, order := range orders {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		res, err := o.syncOrder(ctx, order)
		summary.record(models.SourceKindOrder, order.ID, res, err)
	}
	return summary, nil
}

func (o *Orchestrator) backfill(ctx context.Context, kind string, limit int) (Summary, error) {
	switch kind {
	case models.SyncRunKindOrders:
		return o.BackfillOrders(ctx, limit)
	case models.SyncRunKindQualifications:
		return o.BackfillQualifications(ctx, limit)
	default:
		return Summary{}, fmt.Errorf("%w: %q", ErrUnknownRunKind, kind)
	}
}
