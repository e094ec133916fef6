package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
)

func TestAllocationWritesAuditTrail(t *testing.T) {
	env := newTestEnv(t)

	po := env.createOrder(t, "PO-1",
		models.NewPurchaseOrderDetail{ProductId: env.widget.ID, OrderedQty: d(10)})
	dr := env.createReceipt(t, "DR-1",
		models.NewDeliveryReceiptDetail{ProductId: env.widget.ID, DeliveredQty: d(6)})

	results, err := models.CommitAllocations(env.ctx, []models.NewAllocation{
		{DeliveryItemId: dr.Details[0].ID, PoItemId: po.Details[0].ID, Qty: d(6)},
	})
	if err != nil || !results[0].Success {
		t.Fatalf("setup allocation failed: %v %+v", err, results)
	}
	fulfillmentId := results[0].FulfillmentId

	histories, err := models.GetHistories(env.ctx, "fulfillments", fulfillmentId)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) != 1 {
		t.Fatalf("expected 1 history row after create, got %d", len(histories))
	}
	if histories[0].ActionType != "Create" {
		t.Fatalf("expected Create action, got %s", histories[0].ActionType)
	}

	// The After snapshot is the full ledger row.
	var snapshot models.Fulfillment
	if err := utils.UnmarshalFromJSON([]byte(histories[0].After), &snapshot); err != nil {
		t.Fatalf("decode history snapshot: %v", err)
	}
	if snapshot.ID != fulfillmentId {
		t.Fatalf("snapshot id %s, want %s", snapshot.ID, fulfillmentId)
	}
	if !snapshot.Qty.Equal(d(6)) {
		t.Fatalf("snapshot qty %s, want 6", snapshot.Qty)
	}

	if _, err := models.UnlinkAllocation(env.ctx, fulfillmentId); err != nil {
		t.Fatalf("UnlinkAllocation: %v", err)
	}
	histories, err = models.GetHistories(env.ctx, "fulfillments", fulfillmentId)
	if err != nil {
		t.Fatalf("GetHistories after unlink: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("expected 2 history rows after unlink, got %d", len(histories))
	}
	if histories[1].ActionType != "Delete" {
		t.Fatalf("expected Delete action, got %s", histories[1].ActionType)
	}
}

// Cascaded unlinks must be audited under the fulfillment's own id, the same
// way UnlinkAllocation records them.
func TestCascadeDeleteAuditsEachFulfillment(t *testing.T) {
	env := newTestEnv(t)

	po := env.createOrder(t, "PO-1",
		models.NewPurchaseOrderDetail{ProductId: env.widget.ID, OrderedQty: d(10)})
	dr := env.createReceipt(t, "DR-1",
		models.NewDeliveryReceiptDetail{ProductId: env.widget.ID, DeliveredQty: d(6)})

	results, err := models.CommitAllocations(env.ctx, []models.NewAllocation{
		{DeliveryItemId: dr.Details[0].ID, PoItemId: po.Details[0].ID, Qty: d(6)},
	})
	if err != nil || !results[0].Success {
		t.Fatalf("setup allocation failed: %v %+v", err, results)
	}
	fulfillmentId := results[0].FulfillmentId

	if _, err := models.DeletePurchaseOrder(env.ctx, po.ID); err != nil {
		t.Fatalf("DeletePurchaseOrder: %v", err)
	}
	histories, err := models.GetHistories(env.ctx, "fulfillments", fulfillmentId)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("expected Create+Delete history rows after cascade, got %d", len(histories))
	}
	if histories[1].ActionType != "Delete" {
		t.Fatalf("expected Delete action, got %s", histories[1].ActionType)
	}

	// Same discipline when the receipt side is deleted.
	po2 := env.createOrder(t, "PO-2",
		models.NewPurchaseOrderDetail{ProductId: env.widget.ID, OrderedQty: d(10)})
	dr2 := env.createReceipt(t, "DR-2",
		models.NewDeliveryReceiptDetail{ProductId: env.widget.ID, DeliveredQty: d(6)})
	results, err = models.CommitAllocations(env.ctx, []models.NewAllocation{
		{DeliveryItemId: dr2.Details[0].ID, PoItemId: po2.Details[0].ID, Qty: d(6)},
	})
	if err != nil || !results[0].Success {
		t.Fatalf("setup allocation failed: %v %+v", err, results)
	}
	fulfillmentId = results[0].FulfillmentId

	if _, err := models.DeleteDeliveryReceipt(env.ctx, dr2.ID); err != nil {
		t.Fatalf("DeleteDeliveryReceipt: %v", err)
	}
	histories, err = models.GetHistories(env.ctx, "fulfillments", fulfillmentId)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("expected Create+Delete history rows after cascade, got %d", len(histories))
	}
	if histories[1].ActionType != "Delete" {
		t.Fatalf("expected Delete action, got %s", histories[1].ActionType)
	}
}
