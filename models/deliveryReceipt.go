package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

type DeliveryReceipt struct {
	ID            int                     `gorm:"primary_key" json:"id"`
	BusinessId    string                  `gorm:"index;not null" json:"business_id" binding:"required"`
	CustomerId    int                     `gorm:"index;not null" json:"customer_id" binding:"required"`
	ReceiptNumber string                  `gorm:"size:255;not null" json:"receipt_number" binding:"required"`
	ReceiptDate   time.Time               `gorm:"not null" json:"receipt_date" binding:"required"`
	Notes         string                  `gorm:"type:text" json:"notes"`
	Details       []DeliveryReceiptDetail `json:"delivery_receipt_details"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

type DeliveryReceiptDetail struct {
	ID                int              `gorm:"primary_key" json:"id"`
	DeliveryReceiptId int              `gorm:"index;not null" json:"delivery_receipt_id"`
	ProductId         int              `gorm:"index;not null" json:"product_id"`
	Name              string           `gorm:"size:100" json:"name"`
	DeliveredQty      decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"delivered_qty" binding:"required"`
	Purpose           *DeliveryPurpose `gorm:"size:20" json:"purpose"`
}

type NewDeliveryReceipt struct {
	CustomerId    int                        `json:"customer_id" binding:"required"`
	ReceiptNumber string                     `json:"receipt_number" binding:"required"`
	ReceiptDate   time.Time                  `json:"receipt_date" binding:"required"`
	Notes         string                     `json:"notes"`
	Details       []NewDeliveryReceiptDetail `json:"details"`
}

type NewDeliveryReceiptDetail struct {
	DetailId      int              `json:"detail_id"`
	ProductId     int              `json:"product_id" binding:"required"`
	Name          string           `json:"name"`
	DeliveredQty  decimal.Decimal  `json:"delivered_qty" binding:"required"`
	Purpose       *DeliveryPurpose `json:"purpose"`
	IsDeletedItem *bool            `json:"is_deleted_item"`
}

type DeliveryReceiptView struct {
	DeliveryReceipt
	CurrentStatus FulfillmentStatus         `json:"current_status"`
	ItemStatuses  map[int]FulfillmentStatus `json:"item_statuses"`
	ItemRemaining map[int]decimal.Decimal   `json:"item_remaining"`
}

func (input NewDeliveryReceipt) validate(ctx context.Context, businessId string, exceptId int) error {
	if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
		return errors.New("customer not found")
	}
	if err := utils.ValidateUnique[DeliveryReceipt](ctx, businessId, "receipt_number", input.ReceiptNumber, exceptId); err != nil {
		return err
	}
	if len(input.Details) == 0 {
		return errors.New("delivery receipt needs at least one item")
	}
	productIds := make([]int, 0, len(input.Details))
	for _, detail := range input.Details {
		if detail.IsDeletedItem != nil && *detail.IsDeletedItem {
			continue
		}
		if !isPositiveWholeQty(detail.DeliveredQty) {
			return errors.New("delivered qty must be a positive whole number")
		}
		if detail.Purpose != nil && !detail.Purpose.Valid() {
			return errors.New("invalid delivery purpose: " + string(*detail.Purpose))
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

func CreateDeliveryReceipt(ctx context.Context, input *NewDeliveryReceipt) (*DeliveryReceipt, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	var receiptItems []DeliveryReceiptDetail
	for _, item := range input.Details {
		receiptItems = append(receiptItems, DeliveryReceiptDetail{
			ProductId:    item.ProductId,
			Name:         item.Name,
			DeliveredQty: item.DeliveredQty,
			Purpose:      item.Purpose,
		})
	}

	deliveryReceipt := DeliveryReceipt{
		BusinessId:    businessId,
		CustomerId:    input.CustomerId,
		ReceiptNumber: input.ReceiptNumber,
		ReceiptDate:   input.ReceiptDate,
		Notes:         input.Notes,
		Details:       receiptItems,
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&deliveryReceipt).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Create", deliveryReceipt.ID, "delivery_receipts", nil, &deliveryReceipt, "Delivery receipt "+deliveryReceipt.ReceiptNumber+" created"); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &deliveryReceipt, nil
}

func materializeDeliveryReceiptDetails(existing []DeliveryReceiptDetail, changes []NewDeliveryReceiptDetail) (effective []DeliveryReceiptDetail, removed []DeliveryReceiptDetail) {
	byId := make(map[int]DeliveryReceiptDetail, len(existing))
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
			current.DeliveredQty = change.DeliveredQty
			current.Purpose = change.Purpose
			byId[change.DetailId] = current
			continue
		}
		if change.IsDeletedItem != nil && *change.IsDeletedItem {
			continue
		}
		effective = append(effective, DeliveryReceiptDetail{
			ProductId:    change.ProductId,
			Name:         change.Name,
			DeliveredQty: change.DeliveredQty,
			Purpose:      change.Purpose,
		})
	}

	kept := make([]DeliveryReceiptDetail, 0, len(existing))
	for _, item := range existing {
		if survivor, ok := byId[item.ID]; ok {
			kept = append(kept, survivor)
		}
	}
	effective = append(kept, effective...)
	return effective, removed
}

// UpdateDeliveryReceipt edits the document. Items with live fulfillments may
// not drop below their allocated quantity, change product, gain a purpose tag,
// or be removed.
func UpdateDeliveryReceipt(ctx context.Context, receiptID int, input *NewDeliveryReceipt) (*DeliveryReceipt, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, receiptID); err != nil {
		return nil, err
	}

	existingReceipt, err := utils.FetchModel[DeliveryReceipt](ctx, businessId, receiptID, "Details")
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

	ledger, err := fetchLedgerForDeliveryReceipts(tx.WithContext(ctx), businessId, []int{receiptID})
	if err != nil {
		return nil, err
	}
	if config.StrictOrderDocImmutability() && len(ledger) > 0 {
		return nil, errors.New("cannot edit a delivery receipt with live fulfillments; unlink them first")
	}

	effective, removed := materializeDeliveryReceiptDetails(existingReceipt.Details, input.Details)
	if len(effective) == 0 {
		return nil, errors.New("delivery receipt needs at least one item")
	}

	for _, item := range removed {
		if AllocatedToDeliveryItem(ledger, item.ID).IsPositive() {
			return nil, newAllocationError(CapacityExceeded, "delivery item %d has live fulfillments and cannot be removed", item.ID)
		}
	}
	for _, item := range effective {
		if item.ID == 0 {
			continue
		}
		allocated := AllocatedToDeliveryItem(ledger, item.ID)
		if allocated.GreaterThan(item.DeliveredQty) {
			return nil, newAllocationError(CapacityExceeded, "delivery item %d has %s units allocated; delivered qty cannot drop below that", item.ID, allocated.String())
		}
		if !allocated.IsPositive() {
			continue
		}
		if item.Purpose != nil {
			return nil, newAllocationError(PurposeExcluded, "delivery item %d has live fulfillments; a purpose tag cannot be added", item.ID)
		}
		original := deliveryTargetProduct(existingReceipt.Details, item.ID)
		if original != item.ProductId {
			return nil, newAllocationError(ProductMismatch, "delivery item %d has live fulfillments; product cannot change", item.ID)
		}
	}

	existingReceipt.CustomerId = input.CustomerId
	existingReceipt.ReceiptNumber = input.ReceiptNumber
	existingReceipt.ReceiptDate = input.ReceiptDate
	existingReceipt.Notes = input.Notes

	for _, item := range removed {
		if err := tx.WithContext(ctx).Delete(&DeliveryReceiptDetail{}, item.ID).Error; err != nil {
			return nil, err
		}
	}
	for i := range effective {
		effective[i].DeliveryReceiptId = receiptID
		if err := tx.WithContext(ctx).Save(&effective[i]).Error; err != nil {
			return nil, err
		}
	}
	existingReceipt.Details = effective

	if err := tx.WithContext(ctx).Omit("Details").Save(existingReceipt).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Update", receiptID, "delivery_receipts", nil, existingReceipt, "Delivery receipt "+existingReceipt.ReceiptNumber+" updated"); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return existingReceipt, nil
}

func deliveryTargetProduct(details []DeliveryReceiptDetail, detailId int) int {
	for _, d := range details {
		if d.ID == detailId {
			return d.ProductId
		}
	}
	return 0
}

// DeleteDeliveryReceipt removes the document, cascade-deleting its ledger rows.
func DeleteDeliveryReceipt(ctx context.Context, id int) (*DeliveryReceipt, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[DeliveryReceipt](ctx, businessId, id, "Details")
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

	ledger, err := fetchLedgerForDeliveryReceipts(tx.WithContext(ctx), businessId, []int{id})
	if err != nil {
		return nil, err
	}
	touchedOrders := make(map[int]bool)
	for _, row := range ledger {
		if err := tx.WithContext(ctx).Delete(&Fulfillment{}, "id = ?", row.ID).Error; err != nil {
			return nil, err
		}
		if err := createHistory(tx.WithContext(ctx), "Delete", row.ID, "fulfillments", &row, nil, "Fulfillment unlinked by delivery receipt deletion"); err != nil {
			return nil, err
		}
		touchedOrders[row.PurchaseOrderId] = true
	}

	if err := tx.WithContext(ctx).Where("delivery_receipt_id = ?", id).Delete(&DeliveryReceiptDetail{}).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(result).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx.WithContext(ctx), "Delete", id, "delivery_receipts", result, nil, "Delivery receipt "+result.ReceiptNumber+" deleted"); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	for poId := range touchedOrders {
		invalidateStatusCache(businessId, poId)
	}
	return result, nil
}

func GetDeliveryReceipt(ctx context.Context, id int) (*DeliveryReceiptView, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dr, err := utils.FetchModel[DeliveryReceipt](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	ledger, err := fetchLedgerForDeliveryReceipts(db.WithContext(ctx), businessId, []int{id})
	if err != nil {
		return nil, err
	}

	view := DeliveryReceiptView{
		DeliveryReceipt: *dr,
		CurrentStatus:   DeriveDeliveryReceiptStatus(dr, ledger),
		ItemStatuses:    make(map[int]FulfillmentStatus, len(dr.Details)),
		ItemRemaining:   make(map[int]decimal.Decimal, len(dr.Details)),
	}
	for _, item := range dr.Details {
		if item.Purpose != nil {
			continue
		}
		allocated := AllocatedToDeliveryItem(ledger, item.ID)
		view.ItemStatuses[item.ID] = DeriveItemStatus(item.DeliveredQty, allocated)
		view.ItemRemaining[item.ID] = RemainingDeliveryQty(item, ledger)
	}
	return &view, nil
}

func GetDeliveryReceipts(ctx context.Context, receiptNumber *string, customerId *int) ([]*DeliveryReceipt, error) {
	db := config.GetDB()
	var results []*DeliveryReceipt

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId).Preload("Details")
	if receiptNumber != nil && len(*receiptNumber) > 0 {
		dbCtx = dbCtx.Where("receipt_number LIKE ?", "%"+*receiptNumber+"%").Limit(config.SearchLimit)
	}
	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
