package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

const (
	InventoryStatusActive     = "active"
	InventoryStatusSuspended  = "suspended"
	InventoryStatusTerminated = "terminated"
)

type InventoryProduct struct {
	ID                  string          `gorm:"primary_key;size:36" json:"id"`
	Name                string          `gorm:"size:255;not null" json:"name"`
	ProductOfferingId   string          `gorm:"size:64;index" json:"productOfferingId"`
	ProductOfferingName string          `gorm:"size:255" json:"productOfferingName"`
	Quantity            int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
	Status              string          `gorm:"size:20;not null;default:active" json:"status"`
	CustomerEmail       string          `gorm:"size:255;index" json:"customerEmail"`
	Notes               string          `gorm:"type:text" json:"notes"`
	// provenance, written only by order reconciliation
	SourceOrderId    *string    `gorm:"size:64;index" json:"sourceOrderId"`
	SyncedFromOrder  bool       `gorm:"not null;default:false" json:"syncedFromOrder"`
	OriginalQuantity *int       `json:"originalQuantity"`
	OrderDate        *time.Time `json:"orderDate"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p *InventoryProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = InventoryStatusActive
	}
	return nil
}

// HasProvenance reports whether the product was derived from an order.
func (p InventoryProduct) HasProvenance() bool {
	return p.SyncedFromOrder && p.SourceOrderId != nil && *p.SourceOrderId != ""
}

// InventoryProductUpdate is a manual edit. Provenance fields are deliberately absent.
type InventoryProductUpdate struct {
	Name      *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Quantity  *int             `json:"quantity" validate:"omitempty,min=0"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Status    *string          `json:"status" validate:"omitempty,oneof=active suspended terminated"`
	Notes     *string          `json:"notes"`
}

// CreateInventoryProducts inserts all products in one transaction.
func CreateInventoryProducts(ctx context.Context, products []InventoryProduct) ([]InventoryProduct, error) {
	if len(products) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range products {
			if err := tx.Create(&products[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func GetInventoryProduct(ctx context.Context, id string) (*InventoryProduct, error) {
	db := config.GetDB()
	var p InventoryProduct
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &p, nil
}

func ListInventoryProductsBySourceOrder(ctx context.Context, orderId string) ([]InventoryProduct, error) {
	db := config.GetDB()
	var products []InventoryProduct
	err := db.WithContext(ctx).Where("source_order_id = ?", orderId).Order("created_at").Find(&products).Error
	return products, err
}

func UpdateInventoryProduct(ctx context.Context, id string, input *InventoryProductUpdate) (*InventoryProduct, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	product, err := GetInventoryProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Quantity != nil {
		updates["quantity"] = *input.Quantity
	}
	if input.UnitPrice != nil {
		updates["unit_price"] = *input.UnitPrice
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return product, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetInventoryProduct(ctx, id)
}

// DeleteInventoryProduct removes the product and returns it as it was.
func DeleteInventoryProduct(ctx context.Context, id string) (*InventoryProduct, error) {
	product, err := GetInventoryProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).Delete(&InventoryProduct{}).Error; err != nil {
		return nil, err
	}
	return product, nil
}
