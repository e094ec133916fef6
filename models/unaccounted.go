package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// UnaccountedItem is a delivery item with delivered quantity not yet applied to
// any purchase order. Purpose-tagged items are excluded: they are accounted for
// by their tag, not by an allocation.
type UnaccountedItem struct {
	DeliveryReceiptId int             `json:"delivery_receipt_id"`
	ReceiptNumber     string          `json:"receipt_number"`
	ReceiptDate       time.Time       `json:"receipt_date"`
	CustomerId        int             `json:"customer_id"`
	DeliveryItemId    int             `json:"delivery_item_id"`
	ProductId         int             `json:"product_id"`
	ProductName       string          `json:"product_name"`
	DeliveredQty      decimal.Decimal `json:"delivered_qty"`
	AllocatedQty      decimal.Decimal `json:"allocated_qty"`
	UnaccountedQty    decimal.Decimal `json:"unaccounted_qty"`
}

// FindUnaccounted reports the unaccounted remainder for the given receipts, or
// for every receipt of the business when receiptIds is empty.
func FindUnaccounted(ctx context.Context, receiptIds []int) ([]UnaccountedItem, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var receipts []*DeliveryReceipt
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId).Preload("Details")
	if len(receiptIds) > 0 {
		dbCtx = dbCtx.Where("id IN ?", receiptIds)
	}
	if err := dbCtx.Order("receipt_date, id").Find(&receipts).Error; err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(receipts))
	for _, dr := range receipts {
		ids = append(ids, dr.ID)
	}
	ledger, err := fetchLedgerForDeliveryReceipts(db.WithContext(ctx), businessId, ids)
	if err != nil {
		return nil, err
	}

	return buildUnaccounted(receipts, ledger), nil
}

func buildUnaccounted(receipts []*DeliveryReceipt, ledger []Fulfillment) []UnaccountedItem {
	rows := dedupeLedger(ledger)

	var items []UnaccountedItem
	for _, dr := range receipts {
		for _, item := range dr.Details {
			if item.Purpose != nil {
				continue
			}
			allocated := AllocatedToDeliveryItem(rows, item.ID)
			remaining := item.DeliveredQty.Sub(allocated)
			if !remaining.IsPositive() {
				continue
			}
			items = append(items, UnaccountedItem{
				DeliveryReceiptId: dr.ID,
				ReceiptNumber:     dr.ReceiptNumber,
				ReceiptDate:       dr.ReceiptDate,
				CustomerId:        dr.CustomerId,
				DeliveryItemId:    item.ID,
				ProductId:         item.ProductId,
				ProductName:       item.Name,
				DeliveredQty:      item.DeliveredQty,
				AllocatedQty:      allocated,
				UnaccountedQty:    remaining,
			})
		}
	}
	return items
}

// ExportUnaccountedXLSX writes the unaccounted report as a spreadsheet.
func ExportUnaccountedXLSX(ctx context.Context, receiptIds []int, w io.Writer) error {
	data, err := FindUnaccounted(ctx, receiptIds)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetCellValue("Sheet1", "A1", "ReceiptNumber")
	f.SetCellValue("Sheet1", "B1", "ReceiptDate")
	f.SetCellValue("Sheet1", "C1", "ProductName")
	f.SetCellValue("Sheet1", "D1", "DeliveredQty")
	f.SetCellValue("Sheet1", "E1", "AllocatedQty")
	f.SetCellValue("Sheet1", "F1", "UnaccountedQty")

	for i, d := range data {
		f.SetCellValue("Sheet1", "A"+fmt.Sprint(i+2), d.ReceiptNumber)
		f.SetCellValue("Sheet1", "B"+fmt.Sprint(i+2), d.ReceiptDate.Format("2006-01-02"))
		f.SetCellValue("Sheet1", "C"+fmt.Sprint(i+2), d.ProductName)
		f.SetCellValue("Sheet1", "D"+fmt.Sprint(i+2), d.DeliveredQty.InexactFloat64())
		f.SetCellValue("Sheet1", "E"+fmt.Sprint(i+2), d.AllocatedQty.InexactFloat64())
		f.SetCellValue("Sheet1", "F"+fmt.Sprint(i+2), d.UnaccountedQty.InexactFloat64())
	}

	return f.Write(w)
}
