package models

import "time"

type SyncLedgerStatus string

const (
	SyncLedgerStatusStarted   SyncLedgerStatus = "STARTED"
	SyncLedgerStatusSucceeded SyncLedgerStatus = "SUCCEEDED"
	SyncLedgerStatusFailed    SyncLedgerStatus = "FAILED"
)

const (
	SourceKindQualification = "qualification_check"
	SourceKindOrder         = "product_order"

	EntityKindInventoryProduct = "inventory_product"
	EntityKindUserAddress      = "user_address"
)

// SyncLedgerEntry records that a source document produced derived entities.
// Unique constraint: source_id. Inserting the row is the claim on the source.
type SyncLedgerEntry struct {
	ID         uint             `gorm:"primary_key" json:"id"`
	SourceKind string           `gorm:"size:32;not null;index" json:"source_kind"`
	SourceId   string           `gorm:"size:64;not null;uniqueIndex" json:"source_id"`
	Status     SyncLedgerStatus `gorm:"size:20;not null;index" json:"status"`
	EntityIds  []string         `gorm:"type:text;serializer:json" json:"entity_ids"`
	LastError  *string          `gorm:"type:text" json:"last_error"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncTombstone records an operator delete of a derived entity. Unique constraint: entity_id.
type SyncTombstone struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	EntityKind string    `gorm:"size:32;not null" json:"entity_kind"`
	EntityId   string    `gorm:"size:64;not null;uniqueIndex" json:"entity_id"`
	SourceId   *string   `gorm:"size:64;index" json:"source_id"`
	DeletedBy  string    `gorm:"size:100" json:"deleted_by"`
	DeletedAt  time.Time `gorm:"not null" json:"deleted_at"`
}
