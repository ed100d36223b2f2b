package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
)

// GormEntityStore exposes the lookups and writes reconciliation needs over the package functions.
type GormEntityStore struct{}

func (GormEntityStore) FindUserByEmail(ctx context.Context, email string) (*UserProfile, error) {
	return GetUserProfileByEmail(ctx, email)
}

func (GormEntityStore) UpdateUserAddress(ctx context.Context, userId string, addr annotation.Address, sourceId string, syncedAt time.Time) error {
	return UpdateUserAddress(ctx, userId, addr, sourceId, syncedAt)
}

func (GormEntityStore) CreateInventoryProducts(ctx context.Context, products []InventoryProduct) ([]InventoryProduct, error) {
	return CreateInventoryProducts(ctx, products)
}

func (GormEntityStore) ListQualifications(ctx context.Context, limit int) ([]QualificationCheck, error) {
	return ListQualificationChecks(ctx, limit)
}

func (GormEntityStore) ListCompletedOrders(ctx context.Context, limit int) ([]ProductOrder, error) {
	return ListCompletedOrders(ctx, limit)
}
