package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testOrder() *PurchaseOrder {
	return &PurchaseOrder{
		ID:         1,
		CustomerId: 100,
		Details: []PurchaseOrderDetail{
			{ID: 10, ProductId: 7, OrderedQty: qty(10)},
			{ID: 11, ProductId: 8, OrderedQty: qty(5)},
		},
	}
}

func TestBuildMatchCandidatesPairsByProduct(t *testing.T) {
	po := testOrder()
	receipts := []*DeliveryReceipt{
		{
			ID: 50, CustomerId: 100, ReceiptNumber: "DR-50",
			Details: []DeliveryReceiptDetail{
				{ID: 500, ProductId: 7, DeliveredQty: qty(6)},
				{ID: 501, ProductId: 8, DeliveredQty: qty(5)},
				{ID: 502, ProductId: 9, DeliveredQty: qty(3)},
			},
		},
	}

	candidates := buildMatchCandidates(po, receipts, nil)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	proposals := candidates[0].Proposals
	if len(proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(proposals))
	}
	if proposals[0].DeliveryItemId != 500 || proposals[0].PoItemId != 10 || !proposals[0].Qty.Equal(qty(6)) {
		t.Fatalf("unexpected first proposal: %+v", proposals[0])
	}
	if proposals[1].DeliveryItemId != 501 || proposals[1].PoItemId != 11 || !proposals[1].Qty.Equal(qty(5)) {
		t.Fatalf("unexpected second proposal: %+v", proposals[1])
	}
	// product 9 has no matching order item and must produce nothing
	for _, p := range proposals {
		if p.ProductId == 9 {
			t.Fatalf("product 9 should not be proposed: %+v", p)
		}
	}
}

func TestBuildMatchCandidatesSkipsPurposeTaggedItems(t *testing.T) {
	po := testOrder()
	warranty := DeliveryPurposeWarranty
	receipts := []*DeliveryReceipt{
		{
			ID: 50, CustomerId: 100,
			Details: []DeliveryReceiptDetail{
				{ID: 500, ProductId: 7, DeliveredQty: qty(4), Purpose: &warranty},
			},
		},
	}
	if candidates := buildMatchCandidates(po, receipts, nil); len(candidates) != 0 {
		t.Fatalf("expected no candidates for purpose-tagged items, got %d", len(candidates))
	}
}

func TestBuildMatchCandidatesSkipsCrossCustomerReceipts(t *testing.T) {
	po := testOrder()
	receipts := []*DeliveryReceipt{
		{
			ID: 50, CustomerId: 999,
			Details: []DeliveryReceiptDetail{
				{ID: 500, ProductId: 7, DeliveredQty: qty(4)},
			},
		},
	}
	if candidates := buildMatchCandidates(po, receipts, nil); len(candidates) != 0 {
		t.Fatalf("expected no candidates for a different customer's receipt, got %d", len(candidates))
	}
}

func TestBuildMatchCandidatesRespectsExistingLedger(t *testing.T) {
	po := testOrder()
	receipts := []*DeliveryReceipt{
		{
			ID: 50, CustomerId: 100,
			Details: []DeliveryReceiptDetail{
				{ID: 500, ProductId: 7, DeliveredQty: qty(6)},
			},
		},
	}
	// 8 of 10 already fulfilled on the order item; only 2 remain.
	ledger := []Fulfillment{
		{ID: "a", DeliveryItemId: 400, PoItemId: 10, Qty: qty(8)},
	}

	candidates := buildMatchCandidates(po, receipts, ledger)
	if len(candidates) != 1 || len(candidates[0].Proposals) != 1 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
	p := candidates[0].Proposals[0]
	if !p.Qty.Equal(qty(2)) {
		t.Fatalf("expected proposal qty 2, got %s", p.Qty)
	}
	if !p.MaxFulfillable.Equal(qty(2)) {
		t.Fatalf("expected max fulfillable 2, got %s", p.MaxFulfillable)
	}
}

func TestBuildMatchCandidatesDrainsOrderWithinOneReceipt(t *testing.T) {
	po := &PurchaseOrder{
		ID:         1,
		CustomerId: 100,
		Details: []PurchaseOrderDetail{
			{ID: 10, ProductId: 7, OrderedQty: qty(5)},
		},
	}
	receipts := []*DeliveryReceipt{
		{
			ID: 50, CustomerId: 100,
			Details: []DeliveryReceiptDetail{
				{ID: 500, ProductId: 7, DeliveredQty: qty(4)},
				{ID: 501, ProductId: 7, DeliveredQty: qty(4)},
			},
		},
	}

	candidates := buildMatchCandidates(po, receipts, nil)
	if len(candidates) != 1 || len(candidates[0].Proposals) != 2 {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
	first, second := candidates[0].Proposals[0], candidates[0].Proposals[1]
	if !first.Qty.Equal(qty(4)) || !second.Qty.Equal(qty(1)) {
		t.Fatalf("expected 4 then 1, got %s then %s", first.Qty, second.Qty)
	}
	total := first.Qty.Add(second.Qty)
	if total.GreaterThan(decimal.NewFromInt(5)) {
		t.Fatalf("proposals oversubscribe the order item: %s", total)
	}
}

func TestBuildMatchCandidatesReceiptsAreIndependent(t *testing.T) {
	po := &PurchaseOrder{
		ID:         1,
		CustomerId: 100,
		Details: []PurchaseOrderDetail{
			{ID: 10, ProductId: 7, OrderedQty: qty(5)},
		},
	}
	receipts := []*DeliveryReceipt{
		{ID: 50, CustomerId: 100, Details: []DeliveryReceiptDetail{{ID: 500, ProductId: 7, DeliveredQty: qty(5)}}},
		{ID: 51, CustomerId: 100, Details: []DeliveryReceiptDetail{{ID: 510, ProductId: 7, DeliveredQty: qty(5)}}},
	}

	// Each candidate assumes the others were not applied, so both may propose
	// the full remaining 5.
	candidates := buildMatchCandidates(po, receipts, nil)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if len(c.Proposals) != 1 || !c.Proposals[0].Qty.Equal(qty(5)) {
			t.Fatalf("unexpected proposals for receipt %d: %+v", c.DeliveryReceiptId, c.Proposals)
		}
	}
}
