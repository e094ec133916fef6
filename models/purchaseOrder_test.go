package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
)

func TestMaterializePurchaseOrderDetails(t *testing.T) {
	existing := []PurchaseOrderDetail{
		{ID: 1, ProductId: 7, OrderedQty: qty(10)},
		{ID: 2, ProductId: 8, OrderedQty: qty(5)},
	}
	changes := []NewPurchaseOrderDetail{
		{DetailId: 1, ProductId: 7, OrderedQty: qty(12)},
		{DetailId: 2, IsDeletedItem: utils.NewTrue()},
		{ProductId: 9, OrderedQty: qty(3)},
	}

	effective, removed := materializePurchaseOrderDetails(existing, changes)
	if len(removed) != 1 || removed[0].ID != 2 {
		t.Fatalf("expected item 2 removed, got %+v", removed)
	}
	if len(effective) != 2 {
		t.Fatalf("expected 2 effective items, got %d", len(effective))
	}
	if effective[0].ID != 1 || !effective[0].OrderedQty.Equal(qty(12)) {
		t.Fatalf("expected edited item 1 with qty 12, got %+v", effective[0])
	}
	if effective[1].ID != 0 || effective[1].ProductId != 9 {
		t.Fatalf("expected new item for product 9, got %+v", effective[1])
	}
}

func TestMaterializePurchaseOrderDetailsDeleteUnsavedItemIsNoop(t *testing.T) {
	existing := []PurchaseOrderDetail{{ID: 1, ProductId: 7, OrderedQty: qty(10)}}
	changes := []NewPurchaseOrderDetail{
		{DetailId: 999, IsDeletedItem: utils.NewTrue()},
	}
	effective, removed := materializePurchaseOrderDetails(existing, changes)
	if len(removed) != 0 {
		t.Fatalf("expected nothing removed, got %+v", removed)
	}
	if len(effective) != 1 || effective[0].ID != 1 {
		t.Fatalf("expected original item kept, got %+v", effective)
	}
}

func TestMaterializeDeliveryReceiptDetails(t *testing.T) {
	demo := DeliveryPurposeDemo
	existing := []DeliveryReceiptDetail{
		{ID: 1, ProductId: 7, DeliveredQty: qty(6)},
	}
	changes := []NewDeliveryReceiptDetail{
		{DetailId: 1, ProductId: 7, DeliveredQty: qty(6)},
		{ProductId: 7, DeliveredQty: qty(1), Purpose: &demo},
	}

	effective, removed := materializeDeliveryReceiptDetails(existing, changes)
	if len(removed) != 0 {
		t.Fatalf("expected nothing removed, got %+v", removed)
	}
	if len(effective) != 2 {
		t.Fatalf("expected 2 effective items, got %d", len(effective))
	}
	if effective[1].Purpose == nil || *effective[1].Purpose != DeliveryPurposeDemo {
		t.Fatalf("expected demo purpose on new item, got %+v", effective[1])
	}
}
