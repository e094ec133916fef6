package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestDedupeLedgerKeepsMaxQtyPerPair(t *testing.T) {
	rows := []Fulfillment{
		{ID: "a", DeliveryItemId: 1, PoItemId: 10, Qty: qty(2)},
		{ID: "b", DeliveryItemId: 1, PoItemId: 10, Qty: qty(5)},
		{ID: "c", DeliveryItemId: 1, PoItemId: 10, Qty: qty(3)},
		{ID: "d", DeliveryItemId: 2, PoItemId: 10, Qty: qty(1)},
	}

	deduped := dedupeLedger(rows)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 rows after dedupe, got %d", len(deduped))
	}
	if deduped[0].ID != "b" {
		t.Fatalf("expected max-qty row b kept for pair (1,10), got %s", deduped[0].ID)
	}
	if deduped[1].ID != "d" {
		t.Fatalf("expected row d kept for pair (2,10), got %s", deduped[1].ID)
	}

	total := AllocatedToOrderItem(rows, 10)
	if !total.Equal(qty(6)) {
		t.Fatalf("expected allocated 6 (5+1), got %s", total)
	}
}

func TestDedupeLedgerPreservesFirstSeenOrder(t *testing.T) {
	rows := []Fulfillment{
		{ID: "x", DeliveryItemId: 3, PoItemId: 30, Qty: qty(1)},
		{ID: "y", DeliveryItemId: 2, PoItemId: 20, Qty: qty(1)},
		{ID: "z", DeliveryItemId: 3, PoItemId: 30, Qty: qty(4)},
	}
	deduped := dedupeLedger(rows)
	if len(deduped) != 2 || deduped[0].ID != "z" || deduped[1].ID != "y" {
		t.Fatalf("unexpected dedupe result: %+v", deduped)
	}
}

func TestRemainingQuantitiesClampAtZero(t *testing.T) {
	deliveryItem := DeliveryReceiptDetail{ID: 1, DeliveredQty: qty(5)}
	orderItem := PurchaseOrderDetail{ID: 10, OrderedQty: qty(3)}

	// Over-allocated legacy data must not go negative.
	rows := []Fulfillment{
		{ID: "a", DeliveryItemId: 1, PoItemId: 10, Qty: qty(4)},
		{ID: "b", DeliveryItemId: 1, PoItemId: 11, Qty: qty(4)},
	}

	if got := RemainingDeliveryQty(deliveryItem, rows); !got.Equal(decimal.Zero) {
		t.Fatalf("expected remaining delivery 0, got %s", got)
	}
	if got := RemainingOrderQty(orderItem, rows); !got.Equal(decimal.Zero) {
		t.Fatalf("expected remaining order 0, got %s", got)
	}
}

func TestRemainingQuantities(t *testing.T) {
	deliveryItem := DeliveryReceiptDetail{ID: 1, DeliveredQty: qty(10)}
	orderItem := PurchaseOrderDetail{ID: 10, OrderedQty: qty(8)}
	rows := []Fulfillment{
		{ID: "a", DeliveryItemId: 1, PoItemId: 10, Qty: qty(3)},
		{ID: "b", DeliveryItemId: 1, PoItemId: 11, Qty: qty(2)},
		{ID: "c", DeliveryItemId: 2, PoItemId: 10, Qty: qty(1)},
	}

	if got := RemainingDeliveryQty(deliveryItem, rows); !got.Equal(qty(5)) {
		t.Fatalf("expected remaining delivery 5, got %s", got)
	}
	if got := RemainingOrderQty(orderItem, rows); !got.Equal(qty(4)) {
		t.Fatalf("expected remaining order 4, got %s", got)
	}
}
