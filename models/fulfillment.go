package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Fulfillment is one ledger entry: Qty units of a delivery item applied against
// a purchase order item. Entries are append-only; a correction is an unlink
// followed by a fresh entry, never an in-place edit.
type Fulfillment struct {
	ID                string          `gorm:"size:36;primary_key" json:"id"` // uuid
	BusinessId        string          `gorm:"index:idx_ff_biz_po,priority:1;index:idx_ff_biz_dr,priority:1;not null" json:"business_id"`
	DeliveryItemId    int             `gorm:"index:idx_ff_pair,priority:1;not null" json:"delivery_item_id"`
	PoItemId          int             `gorm:"index:idx_ff_pair,priority:2;not null" json:"po_item_id"`
	DeliveryReceiptId int             `gorm:"index:idx_ff_biz_dr,priority:2;not null" json:"delivery_receipt_id"`
	PurchaseOrderId   int             `gorm:"index:idx_ff_biz_po,priority:2;not null" json:"purchase_order_id"`
	ProductId         int             `gorm:"index;not null" json:"product_id"`
	Qty               decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	EffectiveDate     time.Time       `gorm:"not null" json:"effective_date"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	CorrelationId     string          `gorm:"size:64;index" json:"correlation_id"`
}

func GetFulfillment(ctx context.Context, id string) (*Fulfillment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var f Fulfillment
	err := db.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, id).First(&f).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &f, nil
}

// fetchLedgerForPurchaseOrder loads every ledger row applied against the order.
func fetchLedgerForPurchaseOrder(tx *gorm.DB, businessId string, purchaseOrderId int) ([]Fulfillment, error) {
	var rows []Fulfillment
	err := tx.
		Where("business_id = ? AND purchase_order_id = ?", businessId, purchaseOrderId).
		Find(&rows).Error
	return rows, err
}

// fetchLedgerForDeliveryReceipts loads every ledger row drawing from the given receipts.
func fetchLedgerForDeliveryReceipts(tx *gorm.DB, businessId string, receiptIds []int) ([]Fulfillment, error) {
	if len(receiptIds) == 0 {
		return nil, nil
	}
	var rows []Fulfillment
	err := tx.
		Where("business_id = ? AND delivery_receipt_id IN ?", businessId, receiptIds).
		Find(&rows).Error
	return rows, err
}

// fetchLedgerForItems loads the rows touching either side of one allocation pair.
func fetchLedgerForItems(tx *gorm.DB, businessId string, deliveryItemId int, poItemId int) ([]Fulfillment, error) {
	var rows []Fulfillment
	err := tx.
		Where("business_id = ? AND (delivery_item_id = ? OR po_item_id = ?)", businessId, deliveryItemId, poItemId).
		Find(&rows).Error
	return rows, err
}

// ComputeDeliveryItemCapacity returns the delivered quantity not yet applied to
// any purchase order. Always recomputed from the ledger, never cached.
func ComputeDeliveryItemCapacity(ctx context.Context, deliveryItemId int) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, errors.New("business id is required")
	}

	db := config.GetDB()
	var item DeliveryReceiptDetail
	if err := db.WithContext(ctx).First(&item, deliveryItemId).Error; err != nil {
		return decimal.Zero, utils.ErrorRecordNotFound
	}
	rows, err := fetchLedgerForItems(db.WithContext(ctx), businessId, deliveryItemId, 0)
	if err != nil {
		return decimal.Zero, err
	}
	return RemainingDeliveryQty(item, rows), nil
}

// ComputeOrderItemCapacity returns the ordered quantity not yet satisfied by
// any delivery. Always recomputed from the ledger, never cached.
func ComputeOrderItemCapacity(ctx context.Context, poItemId int) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, errors.New("business id is required")
	}

	db := config.GetDB()
	var item PurchaseOrderDetail
	if err := db.WithContext(ctx).First(&item, poItemId).Error; err != nil {
		return decimal.Zero, utils.ErrorRecordNotFound
	}
	rows, err := fetchLedgerForItems(db.WithContext(ctx), businessId, 0, poItemId)
	if err != nil {
		return decimal.Zero, err
	}
	return RemainingOrderQty(item, rows), nil
}
