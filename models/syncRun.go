package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/telco_backend/config"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
	SyncTriggeredEvent  = "event"
)

const (
	SyncRunKindOrders         = "orders"
	SyncRunKindQualifications = "qualifications"
)

type SyncRun struct {
	ID            uint           `gorm:"primary_key" json:"id"`
	Kind          string         `gorm:"size:32;index;not null" json:"kind"`
	Status        string         `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string         `gorm:"size:20" json:"triggered_by"`
	Actor         string         `gorm:"size:100" json:"actor"`
	CorrelationId string         `gorm:"size:64" json:"correlation_id"`
	PageLimit     int            `json:"limit"`
	Updated       int            `json:"updated"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	SkipReasons   map[string]int `gorm:"type:text;serializer:json" json:"skip_reasons"`
	StartedAt     *time.Time     `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at"`
	DurationMs    int64          `json:"duration_ms"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r SyncRun) IsFinished() bool {
	return r.Status == SyncRunStatusSuccess || r.Status == SyncRunStatusFailed || r.Status == SyncRunStatusPartial
}

type SyncError struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	SyncRunId  uint      `gorm:"index;not null" json:"sync_run_id"`
	SourceKind string    `gorm:"size:32" json:"source_kind"`
	SourceId   string    `gorm:"size:64" json:"source_id"`
	ErrorCode  string    `gorm:"size:64" json:"error_code"`
	Message    string    `gorm:"type:text" json:"message"`
	Retryable  bool      `gorm:"default:false" json:"retryable"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateSyncRun(ctx context.Context, run *SyncRun) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(run).Error
}

// GetSyncRun returns (nil, nil) when the run does not exist.
func GetSyncRun(ctx context.Context, id uint) (*SyncRun, error) {
	db := config.GetDB()
	var run SyncRun
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListSyncRuns returns the newest runs first; an empty kind lists every kind.
func ListSyncRuns(ctx context.Context, kind string, limit int) ([]SyncRun, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&SyncRun{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var runs []SyncRun
	err := q.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// StartSyncRun moves a queued run to running. It reports false when another worker already took it.
func StartSyncRun(ctx context.Context, run *SyncRun) (bool, error) {
	now := time.Now().UTC()
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&SyncRun{}).
		Where("id = ? AND status = ?", run.ID, SyncRunStatusQueued).
		Updates(map[string]interface{}{
			"status":     SyncRunStatusRunning,
			"started_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	run.Status = SyncRunStatusRunning
	run.StartedAt = &now
	return true, nil
}

func FinishSyncRun(ctx context.Context, run *SyncRun) error {
	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt
	if run.StartedAt != nil {
		run.DurationMs = finishedAt.Sub(*run.StartedAt).Milliseconds()
	}
	db := config.GetDB()
	// struct update so skip_reasons goes through its json serializer
	return db.WithContext(ctx).Model(run).
		Select("status", "updated", "skipped", "failed", "skip_reasons", "finished_at", "duration_ms").
		Updates(run).Error
}

func CreateSyncError(ctx context.Context, runId uint, sourceKind, sourceId, code, message string, retryable bool) error {
	errRec := SyncError{
		SyncRunId:  runId,
		SourceKind: sourceKind,
		SourceId:   sourceId,
		ErrorCode:  code,
		Message:    message,
		Retryable:  retryable,
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&errRec).Error
}

func ListSyncErrors(ctx context.Context, runId uint) ([]SyncError, error) {
	db := config.GetDB()
	var errs []SyncError
	err := db.WithContext(ctx).Where("sync_run_id = ?", runId).Order("id").Find(&errs).Error
	return errs, err
}
