package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/identity"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

const (
	OrderStateAcknowledged = "acknowledged"
	OrderStateInProgress   = "inProgress"
	OrderStateCompleted    = "completed"
	OrderStateCancelled    = "cancelled"
	OrderStateFailed       = "failed"
)

type ProductOrder struct {
	ID             string            `gorm:"primary_key;size:64" json:"id"`
	Description    string            `gorm:"type:text" json:"description"`
	State          string            `gorm:"size:32;index;not null" json:"state"`
	OrderDate      time.Time         `json:"orderDate"`
	CompletionDate *time.Time        `gorm:"index" json:"completionDate"`
	Notes          []annotation.Note `gorm:"type:text;serializer:json" json:"note"`
	RelatedParty   []RelatedParty    `gorm:"type:text;serializer:json" json:"relatedParty"`
	Items          []OrderItem       `gorm:"foreignKey:OrderId" json:"productOrderItem"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

type OrderItem struct {
	ID           uint            `gorm:"primary_key" json:"-"`
	OrderId      string          `gorm:"size:64;index;not null" json:"-"`
	OfferingId   string          `gorm:"size:64" json:"offeringId"`
	OfferingName string          `gorm:"size:255" json:"offeringName"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
	Action       string          `gorm:"size:20" json:"action"`
}

type NewOrderItem struct {
	OfferingId   string          `json:"offeringId" validate:"max=64"`
	OfferingName string          `json:"offeringName" validate:"max=255"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Action       string          `json:"action" validate:"omitempty,oneof=add modify delete noChange"`
}

type NewProductOrder struct {
	Id           string            `json:"id" validate:"omitempty,max=64"`
	Description  string            `json:"description"`
	State        string            `json:"state" validate:"omitempty,oneof=acknowledged inProgress completed cancelled failed"`
	OrderDate    *time.Time        `json:"orderDate"`
	Notes        []annotation.Note `json:"note"`
	RelatedParty []RelatedParty    `json:"relatedParty" validate:"dive"`
	Items        []NewOrderItem    `json:"productOrderItem" validate:"dive"`
}

func CreateProductOrder(ctx context.Context, input *NewProductOrder) (*ProductOrder, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.Id)
	if id == "" {
		id = uuid.NewString()
	}
	state := input.State
	if state == "" {
		state = OrderStateAcknowledged
	}
	now := time.Now().UTC()
	orderDate := now
	if input.OrderDate != nil {
		orderDate = *input.OrderDate
	}

	order := ProductOrder{
		ID:           id,
		Description:  input.Description,
		State:        state,
		OrderDate:    orderDate,
		Notes:        input.Notes,
		RelatedParty: input.RelatedParty,
	}
	if state == OrderStateCompleted {
		order.CompletionDate = &now
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, OrderItem{
			OfferingId:   strings.TrimSpace(item.OfferingId),
			OfferingName: strings.TrimSpace(item.OfferingName),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Action:       item.Action,
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateProductOrderState moves an order to state. Reaching completed stamps the completion date once.
func UpdateProductOrderState(ctx context.Context, id string, state string) (*ProductOrder, error) {
	switch state {
	case OrderStateAcknowledged, OrderStateInProgress, OrderStateCompleted, OrderStateCancelled, OrderStateFailed:
	default:
		return nil, fmt.Errorf("%w (state:%q)", utils.ErrInvalidInput, state)
	}

	order, err := GetProductOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"state": state}
	if state == OrderStateCompleted && order.CompletionDate == nil {
		now := time.Now().UTC()
		updates["completion_date"] = now
		order.CompletionDate = &now
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&ProductOrder{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	order.State = state
	return order, nil
}

func GetProductOrder(ctx context.Context, id string) (*ProductOrder, error) {
	db := config.GetDB()
	var order ProductOrder
	err := db.WithContext(ctx).Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id")
	}).Where("id = ?", id).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}

// pendingOrdersFirst ranks orders with a succeeded ledger entry or an inventory tombstone last,
// then most recently completed first.
const pendingOrdersFirst = `CASE WHEN EXISTS (
	SELECT 1 FROM sync_ledger_entries l WHERE l.source_id = product_orders.id AND l.status = ?
) OR EXISTS (
	SELECT 1 FROM sync_tombstones t WHERE t.source_id = product_orders.id AND t.entity_kind = ?
) THEN 1 ELSE 0 END, completion_date DESC, id`

// ListCompletedOrders returns a bounded page of completed orders. Orders not yet synced come
// first, so a page never fills up with orders a previous backfill already handled.
func ListCompletedOrders(ctx context.Context, limit int) ([]ProductOrder, error) {
	db := config.GetDB()
	var orders []ProductOrder
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id")
		}).
		Where("state = ?", OrderStateCompleted).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  pendingOrdersFirst,
			Vars: []interface{}{SyncLedgerStatusSucceeded, EntityKindInventoryProduct},
		}}).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (o ProductOrder) IsCompleted() bool {
	return o.State == OrderStateCompleted
}

func (o ProductOrder) LineItems() []annotation.Item {
	items := make([]annotation.Item, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, annotation.Item{
			OfferingId:   it.OfferingId,
			OfferingName: it.OfferingName,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
		})
	}
	return items
}

func (o ProductOrder) IdentityDocument() identity.Document {
	return identity.Document{
		RelatedPartyEmail: firstPartyEmail(o.RelatedParty),
		Description:       o.Description,
		NoteTexts:         noteTexts(o.Notes),
	}
}
