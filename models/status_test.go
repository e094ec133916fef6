package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDeriveItemStatus(t *testing.T) {
	cases := []struct {
		required, fulfilled int64
		want                FulfillmentStatus
	}{
		{10, 0, FulfillmentStatusUnfulfilled},
		{10, 3, FulfillmentStatusPartial},
		{10, 10, FulfillmentStatusFulfilled},
		{10, 12, FulfillmentStatusFulfilled},
	}
	for _, tc := range cases {
		got := DeriveItemStatus(decimal.NewFromInt(tc.required), decimal.NewFromInt(tc.fulfilled))
		if got != tc.want {
			t.Fatalf("DeriveItemStatus(%d, %d) = %s, want %s", tc.required, tc.fulfilled, got, tc.want)
		}
	}
}

func TestAggregateStatuses(t *testing.T) {
	u, p, f := FulfillmentStatusUnfulfilled, FulfillmentStatusPartial, FulfillmentStatusFulfilled
	cases := []struct {
		statuses []FulfillmentStatus
		want     FulfillmentStatus
	}{
		{nil, u},
		{[]FulfillmentStatus{u, u}, u},
		{[]FulfillmentStatus{f, f}, f},
		{[]FulfillmentStatus{f, u}, p},
		{[]FulfillmentStatus{p}, p},
		{[]FulfillmentStatus{f, p, f}, p},
	}
	for _, tc := range cases {
		if got := AggregateStatuses(tc.statuses); got != tc.want {
			t.Fatalf("AggregateStatuses(%v) = %s, want %s", tc.statuses, got, tc.want)
		}
	}
}

func TestDeriveDeliveryReceiptStatusIgnoresPurposeItems(t *testing.T) {
	demo := DeliveryPurposeDemo
	dr := &DeliveryReceipt{
		ID: 1,
		Details: []DeliveryReceiptDetail{
			{ID: 1, DeliveredQty: qty(5)},
			{ID: 2, DeliveredQty: qty(1), Purpose: &demo},
		},
	}
	ledger := []Fulfillment{
		{ID: "a", DeliveryItemId: 1, PoItemId: 10, Qty: qty(5)},
	}

	// The demo item can never be allocated; it must not pin the receipt at Partial.
	if got := DeriveDeliveryReceiptStatus(dr, ledger); got != FulfillmentStatusFulfilled {
		t.Fatalf("expected Fulfilled, got %s", got)
	}
}

func TestDeriveDeliveryReceiptStatusAllPurposeTagged(t *testing.T) {
	warranty := DeliveryPurposeWarranty
	dr := &DeliveryReceipt{
		ID: 1,
		Details: []DeliveryReceiptDetail{
			{ID: 1, DeliveredQty: qty(2), Purpose: &warranty},
		},
	}
	if got := DeriveDeliveryReceiptStatus(dr, nil); got != FulfillmentStatusUnfulfilled {
		t.Fatalf("expected Unfulfilled for all-purpose receipt, got %s", got)
	}
}

func TestDerivePurchaseOrderStatus(t *testing.T) {
	po := &PurchaseOrder{
		ID: 1,
		Details: []PurchaseOrderDetail{
			{ID: 10, OrderedQty: qty(10)},
			{ID: 11, OrderedQty: qty(5)},
		},
	}

	if got := DerivePurchaseOrderStatus(po, nil); got != FulfillmentStatusUnfulfilled {
		t.Fatalf("expected Unfulfilled, got %s", got)
	}

	partial := []Fulfillment{{ID: "a", DeliveryItemId: 1, PoItemId: 10, Qty: qty(10)}}
	if got := DerivePurchaseOrderStatus(po, partial); got != FulfillmentStatusPartial {
		t.Fatalf("expected Partial, got %s", got)
	}

	full := append(partial, Fulfillment{ID: "b", DeliveryItemId: 2, PoItemId: 11, Qty: qty(5)})
	if got := DerivePurchaseOrderStatus(po, full); got != FulfillmentStatusFulfilled {
		t.Fatalf("expected Fulfilled, got %s", got)
	}
}

func TestStatusRankOrdering(t *testing.T) {
	if !(FulfillmentStatusUnfulfilled.Rank() < FulfillmentStatusPartial.Rank() &&
		FulfillmentStatusPartial.Rank() < FulfillmentStatusFulfilled.Rank()) {
		t.Fatal("status ranks out of order")
	}
}
