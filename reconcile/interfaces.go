package reconcile

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
	"bitbucket.org/mmdatafocus/telco_backend/models"
)

// EntityStore is the canonical-entity side. models.GormEntityStore implements it.
type EntityStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	UpdateUserAddress(ctx context.Context, userId string, addr annotation.Address, sourceId string, syncedAt time.Time) error
	CreateInventoryProducts(ctx context.Context, products []models.InventoryProduct) ([]models.InventoryProduct, error)
}

// Ledger is the tombstone and sync ledger. *tombstone.Store implements it.
type Ledger interface {
	IsDeleted(ctx context.Context, entityId string) bool
	WasSourceTombstoned(ctx context.Context, entityKind, sourceId string) bool
	WasSynced(ctx context.Context, sourceId string) bool
	MarkSynced(ctx context.Context, entityId, sourceId string)
	Claim(ctx context.Context, kind, sourceId string) (bool, error)
	Release(ctx context.Context, sourceId string, cause error)
}
