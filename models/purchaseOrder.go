package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

type PurchaseOrder struct {
	ID          int                   `gorm:"primary_key" json:"id"`
	BusinessId  string                `gorm:"index;not null" json:"business_id" binding:"required"`
	CustomerId  int                   `gorm:"index;not null" json:"customer_id" binding:"required"`
	OrderNumber string                `gorm:"size:255;not null" json:"order_number" binding:"required"`
	OrderDate   time.Time             `gorm:"not null" json:"order_date" binding:"required"`
	Notes       string                `gorm:"type:text" json:"notes"`
	Details     []PurchaseOrderDetail `json:"purchase_order_details"`
	CreatedAt   time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	Name            string          `gorm:"size:100" json:"name"`
	OrderedQty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"ordered_qty" binding:"required"`
	UnitRate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_rate"`
}

type NewPurchaseOrder struct {
	CustomerId  int                      `json:"customer_id" binding:"required"`
	OrderNumber string                   `json:"order_number" binding:"required"`
	OrderDate   time.Time                `json:"order_date" binding:"required"`
	Notes       string                   `json:"notes"`
	Details     []NewPurchaseOrderDetail `json:"details"`
}

type NewPurchaseOrderDetail struct {
	DetailId      int             `json:"detail_id"`
	ProductId     int             `json:"product_id" binding:"required"`
	Name          string          `json:"name"`
	OrderedQty    decimal.Decimal `json:"ordered_qty" binding:"required"`
	UnitRate      decimal.Decimal `json:"unit_rate"`
	IsDeletedItem *bool           `json:"is_deleted_item"`
}

// PurchaseOrderView is a read-model: the document plus its derived status and
// per-item remaining capacity at query time.
type PurchaseOrderView struct {
	PurchaseOrder
	CurrentStatus FulfillmentStatus         `json:"current_status"`
	ItemStatuses  map[int]FulfillmentStatus `json:"item_statuses"`
	ItemRemaining map[int]decimal.Decimal   `json:"item_remaining"`
}

func (input NewPurchaseOrder) validate(ctx context.Context, businessId string, exceptId int) error {
	// exists customer
	if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
		return errors.New("customer not found")
	}
	// validate unique order number
	if err := utils.ValidateUnique[PurchaseOrder](ctx, businessId, "order_number", input.OrderNumber, exceptId); err != nil {
		return err
	}
	if len(input.Details) == 0 {
		return errors.New("purchase order needs at least one item")
	}
	productIds := make([]int, 0, len(input.Details))
	for _, detail := range input.Details {
		if detail.IsDeletedItem != nil && *detail.IsDeletedItem {
			continue
		}
		if !isPositiveWholeQty(detail.OrderedQty) {
			return errors.New("ordered qty must be a positive whole number")
		}
		productIds = append(productIds, detail.ProductId)
	}
	if len(productIds) > 0 {
		if err := utils.ValidateResourcesId[Product](ctx, businessId, productIds); err != nil {
			return errors.New("product not found")
		}
	}
	return nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	var orderItems []PurchaseOrderDetail
	for _, item := range input.Details {
		orderItems = append(orderItems, PurchaseOrderDetail{
			ProductId:  item.ProductId,
			Name:       item.Name,
			OrderedQty: item.OrderedQty,
			UnitRate:   item.UnitRate,
		})
	}

	purchaseOrder := PurchaseOrder{
		BusinessId:  businessId,
		CustomerId:  input.CustomerId,
		OrderNumber: input.OrderNumber,
		OrderDate:   input.OrderDate,
		Notes:       input.Notes,
		Details:     orderItems,
	}

	tx := db.Begin()
	// IMPORTANT: always rollback on early-return or panic to avoid leaking DB locks.
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&purchaseOrder).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Create", purchaseOrder.ID, "purchase_orders", nil, &purchaseOrder, "Purchase order "+purchaseOrder.OrderNumber+" created"); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &purchaseOrder, nil
}

// materializePurchaseOrderDetails applies a pending change set (adds, edits,
// deletes keyed by detail_id) to the stored item list and returns the effective
// list plus the items being removed. Pure; the update path persists the result.
func materializePurchaseOrderDetails(existing []PurchaseOrderDetail, changes []NewPurchaseOrderDetail) (effective []PurchaseOrderDetail, removed []PurchaseOrderDetail) {
	byId := make(map[int]PurchaseOrderDetail, len(existing))
	for _, item := range existing {
		byId[item.ID] = item
	}

	for _, change := range changes {
		current, exists := byId[change.DetailId]
		if exists && change.IsDeletedItem != nil && *change.IsDeletedItem {
			removed = append(removed, current)
			delete(byId, change.DetailId)
			continue
		}
		if exists {
			current.ProductId = change.ProductId
			current.Name = change.Name
			current.OrderedQty = change.OrderedQty
			current.UnitRate = change.UnitRate
			byId[change.DetailId] = current
			continue
		}
		if change.IsDeletedItem != nil && *change.IsDeletedItem {
			// deleting an item that was never saved is a no-op
			continue
		}
		effective = append(effective, PurchaseOrderDetail{
			ProductId:  change.ProductId,
			Name:       change.Name,
			OrderedQty: change.OrderedQty,
			UnitRate:   change.UnitRate,
		})
	}

	// keep surviving stored items in their original order
	kept := make([]PurchaseOrderDetail, 0, len(existing))
	for _, item := range existing {
		if survivor, ok := byId[item.ID]; ok {
			kept = append(kept, survivor)
		}
	}
	effective = append(kept, effective...)
	return effective, removed
}

// UpdatePurchaseOrder edits the document. Items with live fulfillments may not
// drop below their allocated quantity and may not be removed while ledger rows
// reference them.
func UpdatePurchaseOrder(ctx context.Context, purchaseOrderID int, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, purchaseOrderID); err != nil {
		return nil, err
	}

	existingOrder, err := utils.FetchModel[PurchaseOrder](ctx, businessId, purchaseOrderID, "Details")
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	ledger, err := fetchLedgerForPurchaseOrder(tx.WithContext(ctx), businessId, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	if config.StrictOrderDocImmutability() && len(ledger) > 0 {
		return nil, errors.New("cannot edit a purchase order with live fulfillments; unlink them first")
	}

	effective, removed := materializePurchaseOrderDetails(existingOrder.Details, input.Details)
	if len(effective) == 0 {
		return nil, errors.New("purchase order needs at least one item")
	}

	// Re-validate the ledger against the edited quantities: no existing
	// allocation may exceed the new ordered quantity or reference a removed item.
	for _, item := range removed {
		if AllocatedToOrderItem(ledger, item.ID).IsPositive() {
			return nil, newAllocationError(CapacityExceeded, "po item %d has live fulfillments and cannot be removed", item.ID)
		}
	}
	for _, item := range effective {
		if item.ID == 0 {
			continue
		}
		allocated := AllocatedToOrderItem(ledger, item.ID)
		if allocated.GreaterThan(item.OrderedQty) {
			return nil, newAllocationError(CapacityExceeded, "po item %d has %s units fulfilled; ordered qty cannot drop below that", item.ID, allocated.String())
		}
		original := allocationTargetProduct(existingOrder.Details, item.ID)
		if allocated.IsPositive() && original != item.ProductId {
			return nil, newAllocationError(ProductMismatch, "po item %d has live fulfillments; product cannot change", item.ID)
		}
	}

	existingOrder.CustomerId = input.CustomerId
	existingOrder.OrderNumber = input.OrderNumber
	existingOrder.OrderDate = input.OrderDate
	existingOrder.Notes = input.Notes

	for _, item := range removed {
		if err := tx.WithContext(ctx).Delete(&PurchaseOrderDetail{}, item.ID).Error; err != nil {
			return nil, err
		}
	}
	for i := range effective {
		effective[i].PurchaseOrderId = purchaseOrderID
		if err := tx.WithContext(ctx).Save(&effective[i]).Error; err != nil {
			return nil, err
		}
	}
	existingOrder.Details = effective

	if err := tx.WithContext(ctx).Omit("Details").Save(existingOrder).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Update", purchaseOrderID, "purchase_orders", nil, existingOrder, "Purchase order "+existingOrder.OrderNumber+" updated"); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invalidateStatusCache(businessId, purchaseOrderID)
	return existingOrder, nil
}

func allocationTargetProduct(details []PurchaseOrderDetail, detailId int) int {
	for _, d := range details {
		if d.ID == detailId {
			return d.ProductId
		}
	}
	return 0
}

// DeletePurchaseOrder removes the document, cascade-deleting its ledger rows.
func DeletePurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
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

	ledger, err := fetchLedgerForPurchaseOrder(tx.WithContext(ctx), businessId, id)
	if err != nil {
		return nil, err
	}
	for _, row := range ledger {
		if err := tx.WithContext(ctx).Delete(&Fulfillment{}, "id = ?", row.ID).Error; err != nil {
			return nil, err
		}
		if err := createHistory(tx.WithContext(ctx), "Delete", row.ID, "fulfillments", &row, nil, "Fulfillment unlinked by purchase order deletion"); err != nil {
			return nil, err
		}
	}

	if err := tx.WithContext(ctx).Where("purchase_order_id = ?", id).Delete(&PurchaseOrderDetail{}).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(result).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Delete", id, "purchase_orders", result, nil, "Purchase order "+result.OrderNumber+" deleted"); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invalidateStatusCache(businessId, id)
	return result, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrderView, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	po, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ledger, err := fetchLedgerForPurchaseOrder(db.WithContext(ctx), businessId, id)
	if err != nil {
		return nil, err
	}

	view := PurchaseOrderView{
		PurchaseOrder: *po,
		CurrentStatus: DerivePurchaseOrderStatus(po, ledger),
		ItemStatuses:  make(map[int]FulfillmentStatus, len(po.Details)),
		ItemRemaining: make(map[int]decimal.Decimal, len(po.Details)),
	}
	for _, item := range po.Details {
		fulfilled := AllocatedToOrderItem(ledger, item.ID)
		view.ItemStatuses[item.ID] = DeriveItemStatus(item.OrderedQty, fulfilled)
		view.ItemRemaining[item.ID] = RemainingOrderQty(item, ledger)
	}
	return &view, nil
}

func GetPurchaseOrders(ctx context.Context, orderNumber *string) ([]*PurchaseOrder, error) {
	db := config.GetDB()
	var results []*PurchaseOrder

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId).Preload("Details")
	if orderNumber != nil && len(*orderNumber) > 0 {
		dbCtx = dbCtx.Where("order_number LIKE ?", "%"+*orderNumber+"%").Limit(config.SearchLimit)
	}
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
