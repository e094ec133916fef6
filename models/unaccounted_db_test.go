package models_test

import (
	"bytes"
	"testing"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
)

func TestFindUnaccounted(t *testing.T) {
	env := newTestEnv(t)

	demo := models.DeliveryPurposeDemo
	po := env.createOrder(t, "PO-1",
		models.NewPurchaseOrderDetail{ProductId: env.widget.ID, OrderedQty: d(10)})
	dr := env.createReceipt(t, "DR-1",
		models.NewDeliveryReceiptDetail{ProductId: env.widget.ID, Name: "Widget", DeliveredQty: d(6)},
		models.NewDeliveryReceiptDetail{ProductId: env.gadget.ID, Name: "Gadget", DeliveredQty: d(3)},
		models.NewDeliveryReceiptDetail{ProductId: env.widget.ID, Name: "Widget demo", DeliveredQty: d(1), Purpose: &demo})

	results, err := models.CommitAllocations(env.ctx, []models.NewAllocation{
		{DeliveryItemId: dr.Details[0].ID, PoItemId: po.Details[0].ID, Qty: d(4)},
	})
	if err != nil || !results[0].Success {
		t.Fatalf("setup allocation failed: %v %+v", err, results)
	}

	items, err := models.FindUnaccounted(env.ctx, []int{dr.ID})
	if err != nil {
		t.Fatalf("FindUnaccounted: %v", err)
	}
	// Widget has 2 unaccounted, gadget 3; the demo item is excluded.
	if len(items) != 2 {
		t.Fatalf("expected 2 unaccounted items, got %+v", items)
	}
	if items[0].DeliveryItemId != dr.Details[0].ID || !items[0].UnaccountedQty.Equal(d(2)) {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].DeliveryItemId != dr.Details[1].ID || !items[1].UnaccountedQty.Equal(d(3)) {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
	if !items[0].AllocatedQty.Equal(d(4)) {
		t.Fatalf("expected allocated 4 on first item, got %s", items[0].AllocatedQty)
	}
}

func TestFindUnaccountedFullyAllocatedReceiptDisappears(t *testing.T) {
	env := newTestEnv(t)

	po := env.createOrder(t, "PO-1",
		models.NewPurchaseOrderDetail{ProductId: env.widget.ID, OrderedQty: d(5)})
	dr := env.createReceipt(t, "DR-1",
		models.NewDeliveryReceiptDetail{ProductId: env.widget.ID, DeliveredQty: d(5)})

	results, err := models.CommitAllocations(env.ctx, []models.NewAllocation{
		{DeliveryItemId: dr.Details[0].ID, PoItemId: po.Details[0].ID, Qty: d(5)},
	})
	if err != nil || !results[0].Success {
		t.Fatalf("setup allocation failed: %v %+v", err, results)
	}

	items, err := models.FindUnaccounted(env.ctx, []int{dr.ID})
	if err != nil {
		t.Fatalf("FindUnaccounted: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no unaccounted items, got %+v", items)
	}
}

func TestExportUnaccountedXLSX(t *testing.T) {
	env := newTestEnv(t)

	env.createReceipt(t, "DR-1",
		models.NewDeliveryReceiptDetail{ProductId: env.widget.ID, Name: "Widget", DeliveredQty: d(6)})

	var buf bytes.Buffer
	if err := models.ExportUnaccountedXLSX(env.ctx, nil, &buf); err != nil {
		t.Fatalf("ExportUnaccountedXLSX: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty workbook")
	}
	// xlsx files are zip archives
	if got := buf.Bytes()[:2]; got[0] != 'P' || got[1] != 'K' {
		t.Fatalf("expected zip magic, got %q", got)
	}
}
