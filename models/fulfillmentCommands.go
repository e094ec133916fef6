package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewAllocation is one requested ledger entry. MaxAtProposal, when set, is the
// capacity the caller saw at proposal time; the writer uses it to report a
// concurrent shrink (StaleProposal) instead of a plain CapacityExceeded.
type NewAllocation struct {
	DeliveryItemId int              `json:"delivery_item_id" binding:"required"`
	PoItemId       int              `json:"po_item_id" binding:"required"`
	Qty            decimal.Decimal  `json:"qty" binding:"required"`
	EffectiveDate  time.Time        `json:"effective_date"`
	MaxAtProposal  *decimal.Decimal `json:"max_at_proposal"`
}

type AllocationResult struct {
	DeliveryItemId int                 `json:"delivery_item_id"`
	PoItemId       int                 `json:"po_item_id"`
	Qty            decimal.Decimal     `json:"qty"`
	FulfillmentId  string              `json:"fulfillment_id,omitempty"`
	Success        bool                `json:"success"`
	FailureKind    AllocationErrorKind `json:"failure_kind,omitempty"`
	Reason         string              `json:"reason,omitempty"`
}

// CommitAllocations applies a batch of proposed allocations. Each entry is
// validated and written in its own transaction: one bad entry never poisons the
// rest, and the caller gets an itemized result per entry. Failed entries are
// not retried here; the caller re-proposes against fresh capacity.
func CommitAllocations(ctx context.Context, inputs []NewAllocation) ([]AllocationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// Best-effort serialization of same-business writers. Correctness comes
	// from row locks inside commitOne; Redis being down must not block writes.
	release, err := utils.BusinessLock(ctx, businessId, "fulfillment", "models", "CommitAllocations")
	if err == nil {
		defer release()
	} else {
		config.LogError(config.GetLogger(), "models", "CommitAllocations", "businessLock", businessId, err)
	}

	results := make([]AllocationResult, 0, len(inputs))
	for _, input := range inputs {
		result := AllocationResult{
			DeliveryItemId: input.DeliveryItemId,
			PoItemId:       input.PoItemId,
			Qty:            input.Qty,
		}
		f, err := commitOne(ctx, businessId, input)
		if err != nil {
			ae := AsAllocationError(err)
			result.FailureKind = ae.Kind
			result.Reason = ae.Message
			if ae.Kind == StorageError {
				config.LogError(config.GetLogger(), "models", "CommitAllocations", "commitOne", input, err)
			}
		} else {
			result.Success = true
			result.FulfillmentId = f.ID
		}
		results = append(results, result)
	}
	return results, nil
}

// commitOne validates and inserts a single ledger entry atomically. The two
// item rows are locked FOR UPDATE so the capacity read and the insert see a
// consistent ledger even under concurrent writers.
func commitOne(ctx context.Context, businessId string, input NewAllocation) (*Fulfillment, error) {
	if !isPositiveWholeQty(input.Qty) {
		return nil, newAllocationError(InvalidQuantity, "qty must be a positive whole number, got %s", input.Qty.String())
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var deliveryItem DeliveryReceiptDetail
	if err := lockForUpdate(tx.WithContext(ctx)).
		First(&deliveryItem, input.DeliveryItemId).Error; err != nil {
		return nil, newAllocationError(NotFound, "delivery item %d not found", input.DeliveryItemId)
	}
	var orderItem PurchaseOrderDetail
	if err := lockForUpdate(tx.WithContext(ctx)).
		First(&orderItem, input.PoItemId).Error; err != nil {
		return nil, newAllocationError(NotFound, "po item %d not found", input.PoItemId)
	}

	var receipt DeliveryReceipt
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, deliveryItem.DeliveryReceiptId).
		First(&receipt).Error; err != nil {
		return nil, newAllocationError(NotFound, "delivery item %d not found", input.DeliveryItemId)
	}
	var order PurchaseOrder
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, orderItem.PurchaseOrderId).
		First(&order).Error; err != nil {
		return nil, newAllocationError(NotFound, "po item %d not found", input.PoItemId)
	}

	if deliveryItem.Purpose != nil {
		return nil, newAllocationError(PurposeExcluded, "delivery item %d is tagged %s and cannot satisfy a purchase order", deliveryItem.ID, string(*deliveryItem.Purpose))
	}
	if deliveryItem.ProductId != orderItem.ProductId {
		return nil, newAllocationError(ProductMismatch, "delivery item product %d does not match po item product %d", deliveryItem.ProductId, orderItem.ProductId)
	}
	if receipt.CustomerId != order.CustomerId {
		return nil, newAllocationError(CrossCustomer, "delivery receipt %d belongs to customer %d, purchase order %d to customer %d", receipt.ID, receipt.CustomerId, order.ID, order.CustomerId)
	}

	ledger, err := fetchLedgerForItems(tx.WithContext(ctx), businessId, deliveryItem.ID, orderItem.ID)
	if err != nil {
		return nil, err
	}

	if config.StrictPairUniqueness() {
		for _, row := range ledger {
			if row.DeliveryItemId == deliveryItem.ID && row.PoItemId == orderItem.ID {
				return nil, newAllocationError(DuplicateAllocation, "delivery item %d is already allocated to po item %d (fulfillment %s)", deliveryItem.ID, orderItem.ID, row.ID)
			}
		}
	}

	deliveryRemaining := RemainingDeliveryQty(deliveryItem, ledger)
	orderRemaining := RemainingOrderQty(orderItem, ledger)
	capacity := decimalMin(deliveryRemaining, orderRemaining)
	if input.Qty.GreaterThan(capacity) {
		if input.MaxAtProposal != nil && input.Qty.LessThanOrEqual(*input.MaxAtProposal) {
			return nil, newAllocationError(StaleProposal, "capacity shrank to %s since proposal (was %s); re-propose and retry", capacity.String(), input.MaxAtProposal.String())
		}
		return nil, newAllocationError(CapacityExceeded, "qty %s exceeds remaining capacity %s (delivery %s, order %s)", input.Qty.String(), capacity.String(), deliveryRemaining.String(), orderRemaining.String())
	}

	effectiveDate := input.EffectiveDate
	if effectiveDate.IsZero() {
		effectiveDate = receipt.ReceiptDate
	}

	fulfillment := Fulfillment{
		ID:                uuid.NewString(),
		BusinessId:        businessId,
		DeliveryItemId:    deliveryItem.ID,
		PoItemId:          orderItem.ID,
		DeliveryReceiptId: receipt.ID,
		PurchaseOrderId:   order.ID,
		ProductId:         deliveryItem.ProductId,
		Qty:               input.Qty,
		EffectiveDate:     effectiveDate,
		CorrelationId:     correlationIdFromContextOrNew(ctx),
	}

	if err := tx.WithContext(ctx).Create(&fulfillment).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Create", fulfillment.ID, "fulfillments", nil, &fulfillment, "Allocated "+input.Qty.String()+" units of delivery receipt "+receipt.ReceiptNumber+" against purchase order "+order.OrderNumber); err != nil {
		return nil, err
	}
	if err := enqueueFulfillmentEvent(tx.WithContext(ctx), FulfillmentEventCreated, &fulfillment); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invalidateStatusCache(businessId, fulfillment.PurchaseOrderId)
	return &fulfillment, nil
}

// UnlinkAllocation removes one ledger entry, returning capacity to both sides.
// This is the only way a fulfillment goes away short of deleting its documents.
func UnlinkAllocation(ctx context.Context, fulfillmentId string) (*Fulfillment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var fulfillment Fulfillment
	err := lockForUpdate(tx.WithContext(ctx)).
		Where("business_id = ? AND id = ?", businessId, fulfillmentId).
		First(&fulfillment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newAllocationError(NotFound, "fulfillment %s not found", fulfillmentId)
		}
		return nil, err
	}

	if err := tx.WithContext(ctx).Delete(&Fulfillment{}, "id = ?", fulfillment.ID).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Delete", fulfillment.ID, "fulfillments", &fulfillment, nil, "Fulfillment unlinked; "+fulfillment.Qty.String()+" units returned to both documents"); err != nil {
		return nil, err
	}
	if err := enqueueFulfillmentEvent(tx.WithContext(ctx), FulfillmentEventDeleted, &fulfillment); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invalidateStatusCache(businessId, fulfillment.PurchaseOrderId)
	return &fulfillment, nil
}
