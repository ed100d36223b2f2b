package tombstone

import (
	"context"
	"errors"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/telco_backend/models"
)

type gormBackend struct {
	db *gorm.DB
}

// NewGormBackend keeps both ledgers in the application database, next to the entities they describe.
func NewGormBackend(db *gorm.DB) Backend {
	return &gormBackend{db: db}
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (b *gormBackend) MarkDeleted(ctx context.Context, t Tombstone) error {
	rec := models.SyncTombstone{
		EntityKind: t.EntityKind,
		EntityId:   t.EntityId,
		DeletedBy:  t.DeletedBy,
		DeletedAt:  t.DeletedAt,
	}
	if t.SourceId != "" {
		src := t.SourceId
		rec.SourceId = &src
	}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"entity_kind", "source_id", "deleted_by", "deleted_at"}),
	}).Create(&rec).Error
}

func (b *gormBackend) IsDeleted(ctx context.Context, entityId string) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&models.SyncTombstone{}).Where("entity_id = ?", entityId).Count(&count).Error
	return count > 0, err
}

func (b *gormBackend) WasSourceTombstoned(ctx context.Context, entityKind, sourceId string) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&models.SyncTombstone{}).
		Where("entity_kind = ? AND source_id = ?", entityKind, sourceId).
		Count(&count).Error
	return count > 0, err
}

func (b *gormBackend) WasSynced(ctx context.Context, sourceId string) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&models.SyncLedgerEntry{}).
		Where("source_id = ? AND status = ?", sourceId, models.SyncLedgerStatusSucceeded).
		Count(&count).Error
	return count > 0, err
}

func (b *gormBackend) MarkSynced(ctx context.Context, entityId, sourceId string) error {
	db := b.db.WithContext(ctx)
	entry := models.SyncLedgerEntry{
		SourceKind: "unknown",
		SourceId:   sourceId,
		Status:     models.SyncLedgerStatusSucceeded,
		EntityIds:  []string{entityId},
	}
	if err := db.Create(&entry).Error; err == nil {
		return nil
	} else if !isDuplicateKeyErr(err) {
		return err
	}

	var existing models.SyncLedgerEntry
	if err := db.Where("source_id = ?", sourceId).Take(&existing).Error; err != nil {
		return err
	}
	if !containsString(existing.EntityIds, entityId) {
		existing.EntityIds = append(existing.EntityIds, entityId)
	}
	existing.Status = models.SyncLedgerStatusSucceeded
	existing.LastError = nil
	return db.Model(&existing).Select("status", "entity_ids", "last_error").Updates(&existing).Error
}

func (b *gormBackend) Claim(ctx context.Context, sourceKind, sourceId string, ttl time.Duration) (bool, error) {
	db := b.db.WithContext(ctx)
	entry := models.SyncLedgerEntry{
		SourceKind: sourceKind,
		SourceId:   sourceId,
		Status:     models.SyncLedgerStatusStarted,
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	var existing models.SyncLedgerEntry
	if err := db.Where("source_id = ?", sourceId).Take(&existing).Error; err != nil {
		return false, err
	}
	if existing.Status == models.SyncLedgerStatusSucceeded {
		return false, nil
	}

	// Re-take a FAILED entry or a STARTED one whose owner went silent. The guard
	// in the WHERE clause makes concurrent re-takes exclusive.
	now := time.Now()
	retake := db.Model(&models.SyncLedgerEntry{}).
		Where("id = ? AND (status = ? OR (status = ? AND updated_at < ?))",
			existing.ID, models.SyncLedgerStatusFailed, models.SyncLedgerStatusStarted, now.Add(-ttl)).
		Updates(map[string]interface{}{
			"status":      models.SyncLedgerStatusStarted,
			"source_kind": sourceKind,
			"last_error":  nil,
			"updated_at":  now,
		})
	if retake.Error != nil {
		return false, retake.Error
	}
	if retake.RowsAffected == 0 {
		return false, ErrClaimHeld
	}
	return true, nil
}

func (b *gormBackend) Release(ctx context.Context, sourceId string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return b.db.WithContext(ctx).Model(&models.SyncLedgerEntry{}).
		Where("source_id = ? AND status = ?", sourceId, models.SyncLedgerStatusStarted).
		Updates(map[string]interface{}{
			"status":     models.SyncLedgerStatusFailed,
			"last_error": &msg,
		}).Error
}

func (b *gormBackend) ClearHistory(ctx context.Context) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SyncTombstone{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.SyncLedgerEntry{}).Error
	})
}

func (b *gormBackend) Snapshot(ctx context.Context) (History, error) {
	var (
		tombstones []models.SyncTombstone
		entries    []models.SyncLedgerEntry
		h          History
	)
	db := b.db.WithContext(ctx)
	if err := db.Order("deleted_at").Find(&tombstones).Error; err != nil {
		return h, err
	}
	if err := db.Order("id").Find(&entries).Error; err != nil {
		return h, err
	}
	for _, t := range tombstones {
		rec := Tombstone{EntityKind: t.EntityKind, EntityId: t.EntityId, DeletedBy: t.DeletedBy, DeletedAt: t.DeletedAt}
		if t.SourceId != nil {
			rec.SourceId = *t.SourceId
		}
		h.Tombstones = append(h.Tombstones, rec)
	}
	for _, e := range entries {
		rec := LedgerEntry{
			SourceKind: e.SourceKind,
			SourceId:   e.SourceId,
			Status:     LedgerStatus(e.Status),
			EntityIds:  e.EntityIds,
			UpdatedAt:  e.UpdatedAt,
		}
		if e.LastError != nil {
			rec.LastError = *e.LastError
		}
		h.Ledger = append(h.Ledger, rec)
	}
	return h, nil
}

func containsString(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
