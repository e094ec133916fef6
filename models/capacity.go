package models

import (
	"github.com/shopspring/decimal"
)

// The capacity calculator is a pure layer over ledger rows fetched by the
// caller. It never writes and never trusts a cached counter.

type allocationPair struct {
	DeliveryItemId int
	PoItemId       int
}

// dedupeLedger collapses duplicate rows for the same (delivery_item, po_item)
// pair, keeping the row with the larger quantity. Duplicates should no longer
// be writable (the writer enforces pair uniqueness) but legacy data and retried
// inserts from before that fix still exist; summing them would double-count a
// single logical allocation.
func dedupeLedger(rows []Fulfillment) []Fulfillment {
	if len(rows) < 2 {
		return rows
	}
	best := make(map[allocationPair]Fulfillment, len(rows))
	order := make([]allocationPair, 0, len(rows))
	for _, row := range rows {
		key := allocationPair{DeliveryItemId: row.DeliveryItemId, PoItemId: row.PoItemId}
		existing, seen := best[key]
		if !seen {
			best[key] = row
			order = append(order, key)
			continue
		}
		if row.Qty.GreaterThan(existing.Qty) {
			best[key] = row
		}
	}
	deduped := make([]Fulfillment, 0, len(order))
	for _, key := range order {
		deduped = append(deduped, best[key])
	}
	return deduped
}

// AllocatedToDeliveryItem sums the ledger quantity drawn from one delivery item.
func AllocatedToDeliveryItem(rows []Fulfillment, deliveryItemId int) decimal.Decimal {
	total := decimal.Zero
	for _, row := range dedupeLedger(rows) {
		if row.DeliveryItemId == deliveryItemId {
			total = total.Add(row.Qty)
		}
	}
	return total
}

// AllocatedToOrderItem sums the ledger quantity applied against one PO item.
func AllocatedToOrderItem(rows []Fulfillment, poItemId int) decimal.Decimal {
	total := decimal.Zero
	for _, row := range dedupeLedger(rows) {
		if row.PoItemId == poItemId {
			total = total.Add(row.Qty)
		}
	}
	return total
}

// RemainingDeliveryQty returns max(0, delivered - allocated) for a delivery item.
func RemainingDeliveryQty(item DeliveryReceiptDetail, rows []Fulfillment) decimal.Decimal {
	remaining := item.DeliveredQty.Sub(AllocatedToDeliveryItem(rows, item.ID))
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// RemainingOrderQty returns max(0, ordered - allocated) for a purchase order item.
func RemainingOrderQty(item PurchaseOrderDetail, rows []Fulfillment) decimal.Decimal {
	remaining := item.OrderedQty.Sub(AllocatedToOrderItem(rows, item.ID))
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
