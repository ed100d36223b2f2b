package annotation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderLines(t *testing.T) {
	lines, rejected := OrderLines([]Item{
		{OfferingId: "FIB-100", OfferingName: "Fiber 100Mbps", Quantity: 1, UnitPrice: decimal.NewFromInt(25)},
		{OfferingId: " ", OfferingName: ""},
		{OfferingName: "Router", Quantity: 0},
		{OfferingId: "SIM-1", Quantity: -3},
	})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if len(rejected) != 1 || rejected[0] != 1 {
		t.Fatalf("expected item 1 rejected, got %v", rejected)
	}
	if lines[1].Quantity != 1 || lines[2].Quantity != 1 {
		t.Fatalf("non-positive quantities must become 1: %+v", lines)
	}
	if lines[2].DisplayName() != "Offering SIM-1" {
		t.Fatalf("unexpected display name %q", lines[2].DisplayName())
	}
	if !lines[0].UnitPrice.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unit price lost")
	}
}

func TestOrderLines_AllInvalid(t *testing.T) {
	lines, rejected := OrderLines([]Item{{}, {Quantity: 2}})
	if len(lines) != 0 || len(rejected) != 2 {
		t.Fatalf("expected no lines and 2 rejections, got %d/%d", len(lines), len(rejected))
	}
}
