package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// Single source of truth for fulfillment status. Every call site derives status
// through here; nothing persists it on the document row, since any ledger write
// anywhere can change it.

func DeriveItemStatus(required decimal.Decimal, fulfilled decimal.Decimal) FulfillmentStatus {
	if fulfilled.LessThanOrEqual(decimal.Zero) {
		return FulfillmentStatusUnfulfilled
	}
	if fulfilled.GreaterThanOrEqual(required) {
		return FulfillmentStatusFulfilled
	}
	return FulfillmentStatusPartial
}

// AggregateStatuses folds item statuses into a document status: Fulfilled only
// if every item is, Unfulfilled only if every item is, otherwise Partial.
func AggregateStatuses(statuses []FulfillmentStatus) FulfillmentStatus {
	if len(statuses) == 0 {
		return FulfillmentStatusUnfulfilled
	}
	allFulfilled := true
	allUnfulfilled := true
	for _, s := range statuses {
		if s != FulfillmentStatusFulfilled {
			allFulfilled = false
		}
		if s != FulfillmentStatusUnfulfilled {
			allUnfulfilled = false
		}
	}
	if allFulfilled {
		return FulfillmentStatusFulfilled
	}
	if allUnfulfilled {
		return FulfillmentStatusUnfulfilled
	}
	return FulfillmentStatusPartial
}

// DerivePurchaseOrderStatus computes document status from the order's items and
// the ledger rows applied against it.
func DerivePurchaseOrderStatus(po *PurchaseOrder, ledger []Fulfillment) FulfillmentStatus {
	statuses := make([]FulfillmentStatus, 0, len(po.Details))
	for _, item := range po.Details {
		fulfilled := AllocatedToOrderItem(ledger, item.ID)
		statuses = append(statuses, DeriveItemStatus(item.OrderedQty, fulfilled))
	}
	return AggregateStatuses(statuses)
}

// DeriveDeliveryReceiptStatus computes document status from the receipt's items
// and the ledger rows drawing from it. Purpose-tagged items are ignored: they
// can never be fulfilled, and must not pin an otherwise-applied receipt at Partial.
func DeriveDeliveryReceiptStatus(dr *DeliveryReceipt, ledger []Fulfillment) FulfillmentStatus {
	statuses := make([]FulfillmentStatus, 0, len(dr.Details))
	for _, item := range dr.Details {
		if item.Purpose != nil {
			continue
		}
		allocated := AllocatedToDeliveryItem(ledger, item.ID)
		statuses = append(statuses, DeriveItemStatus(item.DeliveredQty, allocated))
	}
	return AggregateStatuses(statuses)
}

const statusCacheTTL = 15 * time.Second

func statusCacheKey(businessId string, purchaseOrderId int) string {
	return fmt.Sprintf("po_status:%s:%d", businessId, purchaseOrderId)
}

func invalidateStatusCache(businessId string, purchaseOrderId int) {
	_ = config.RemoveRedisKey(statusCacheKey(businessId, purchaseOrderId))
}

// GetPurchaseOrderStatus derives the current status from the live ledger. The
// result is cached briefly; every ledger and document mutation invalidates it.
func GetPurchaseOrderStatus(ctx context.Context, purchaseOrderId int) (FulfillmentStatus, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errors.New("business id is required")
	}

	cacheKey := statusCacheKey(businessId, purchaseOrderId)
	if cached, hit, err := config.GetRedisValue(cacheKey); err == nil && hit {
		return FulfillmentStatus(cached), nil
	}

	po, err := utils.FetchModel[PurchaseOrder](ctx, businessId, purchaseOrderId, "Details")
	if err != nil {
		return "", err
	}
	db := config.GetDB()
	ledger, err := fetchLedgerForPurchaseOrder(db.WithContext(ctx), businessId, purchaseOrderId)
	if err != nil {
		return "", err
	}
	status := DerivePurchaseOrderStatus(po, ledger)
	_ = config.SetRedisValue(cacheKey, string(status), statusCacheTTL)
	return status, nil
}

// GetDeliveryReceiptStatus derives the current status from the live ledger.
func GetDeliveryReceiptStatus(ctx context.Context, deliveryReceiptId int) (FulfillmentStatus, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errors.New("business id is required")
	}

	dr, err := utils.FetchModel[DeliveryReceipt](ctx, businessId, deliveryReceiptId, "Details")
	if err != nil {
		return "", err
	}
	db := config.GetDB()
	ledger, err := fetchLedgerForDeliveryReceipts(db.WithContext(ctx), businessId, []int{deliveryReceiptId})
	if err != nil {
		return "", err
	}
	return DeriveDeliveryReceiptStatus(dr, ledger), nil
}
