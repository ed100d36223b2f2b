package annotation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Item is the structured part of an order line, read directly instead of from text.
type Item struct {
	OfferingId   string
	OfferingName string
	Quantity     int
	UnitPrice    decimal.Decimal
}

type Line struct {
	Index        int
	OfferingId   string
	OfferingName string
	Quantity     int
	UnitPrice    decimal.Decimal
}

// DisplayName prefers the offering name and falls back to "Offering <id>".
func (l Line) DisplayName() string {
	if l.OfferingName != "" {
		return l.OfferingName
	}
	return "Offering " + l.OfferingId
}

// OrderLines returns the usable lines of an order and the indexes of rejected items.
// An item is rejected when it has neither offering id nor name. Quantity <= 0 becomes 1.
func OrderLines(items []Item) ([]Line, []int) {
	lines := make([]Line, 0, len(items))
	var rejected []int
	for i, item := range items {
		id := strings.TrimSpace(item.OfferingId)
		name := strings.TrimSpace(item.OfferingName)
		if id == "" && name == "" {
			rejected = append(rejected, i)
			continue
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, Line{
			Index:        i,
			OfferingId:   id,
			OfferingName: name,
			Quantity:     qty,
			UnitPrice:    item.UnitPrice,
		})
	}
	return lines, rejected
}
