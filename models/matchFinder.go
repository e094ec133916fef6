package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// ProposedAllocation is a non-binding suggestion. Nothing is written until the
// caller commits it; MaxFulfillable records the capacity observed at proposal
// time so a later commit can tell a stale proposal from a bad one.
type ProposedAllocation struct {
	DeliveryItemId    int             `json:"delivery_item_id"`
	PoItemId          int             `json:"po_item_id"`
	DeliveryReceiptId int             `json:"delivery_receipt_id"`
	PurchaseOrderId   int             `json:"purchase_order_id"`
	ProductId         int             `json:"product_id"`
	Qty               decimal.Decimal `json:"qty"`
	MaxFulfillable    decimal.Decimal `json:"max_fulfillable"`
}

type MatchCandidate struct {
	DeliveryReceiptId int                  `json:"delivery_receipt_id"`
	ReceiptNumber     string               `json:"receipt_number"`
	ReceiptDate       time.Time            `json:"receipt_date"`
	Proposals         []ProposedAllocation `json:"proposals"`
}

// FindMatches proposes allocations between an order's open items and the given
// delivery receipts. Receipts are scored independently of each other: each
// candidate assumes none of the other candidates has been applied.
func FindMatches(ctx context.Context, purchaseOrderId int, candidateReceiptIds []int) ([]MatchCandidate, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	po, err := utils.FetchModel[PurchaseOrder](ctx, businessId, purchaseOrderId, "Details")
	if err != nil {
		return nil, err
	}

	var receipts []*DeliveryReceipt
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId).Preload("Details")
	if len(candidateReceiptIds) > 0 {
		dbCtx = dbCtx.Where("id IN ?", candidateReceiptIds)
	} else {
		dbCtx = dbCtx.Where("customer_id = ?", po.CustomerId)
	}
	if err := dbCtx.Order("receipt_date, id").Find(&receipts).Error; err != nil {
		return nil, err
	}

	receiptIds := make([]int, 0, len(receipts))
	for _, dr := range receipts {
		receiptIds = append(receiptIds, dr.ID)
	}

	poLedger, err := fetchLedgerForPurchaseOrder(db.WithContext(ctx), businessId, purchaseOrderId)
	if err != nil {
		return nil, err
	}
	drLedger, err := fetchLedgerForDeliveryReceipts(db.WithContext(ctx), businessId, receiptIds)
	if err != nil {
		return nil, err
	}

	return buildMatchCandidates(po, receipts, append(poLedger, drLedger...)), nil
}

// buildMatchCandidates pairs delivery items with order items by product id.
// Within one receipt a working copy of the order's remaining quantities is
// drained as proposals are emitted, so the receipt's own proposals never
// oversubscribe an order item.
func buildMatchCandidates(po *PurchaseOrder, receipts []*DeliveryReceipt, ledger []Fulfillment) []MatchCandidate {
	rows := dedupeLedger(ledger)

	poRemaining := make(map[int]decimal.Decimal, len(po.Details))
	for _, item := range po.Details {
		remaining := RemainingOrderQty(item, rows)
		if remaining.IsPositive() {
			poRemaining[item.ID] = remaining
		}
	}

	var candidates []MatchCandidate
	for _, dr := range receipts {
		if dr.CustomerId != po.CustomerId {
			continue
		}

		working := make(map[int]decimal.Decimal, len(poRemaining))
		for id, qty := range poRemaining {
			working[id] = qty
		}

		var proposals []ProposedAllocation
		for _, deliveryItem := range dr.Details {
			if deliveryItem.Purpose != nil {
				continue
			}
			deliveryRemaining := RemainingDeliveryQty(deliveryItem, rows)
			if !deliveryRemaining.IsPositive() {
				continue
			}

			for _, orderItem := range po.Details {
				if orderItem.ProductId != deliveryItem.ProductId {
					continue
				}
				orderRemaining := working[orderItem.ID]
				if !orderRemaining.IsPositive() {
					continue
				}

				qty := decimalMin(deliveryRemaining, orderRemaining)
				proposals = append(proposals, ProposedAllocation{
					DeliveryItemId:    deliveryItem.ID,
					PoItemId:          orderItem.ID,
					DeliveryReceiptId: dr.ID,
					PurchaseOrderId:   po.ID,
					ProductId:         deliveryItem.ProductId,
					Qty:               qty,
					MaxFulfillable:    qty,
				})

				working[orderItem.ID] = orderRemaining.Sub(qty)
				deliveryRemaining = deliveryRemaining.Sub(qty)
				if !deliveryRemaining.IsPositive() {
					break
				}
			}
		}

		if len(proposals) > 0 {
			candidates = append(candidates, MatchCandidate{
				DeliveryReceiptId: dr.ID,
				ReceiptNumber:     dr.ReceiptNumber,
				ReceiptDate:       dr.ReceiptDate,
				Proposals:         proposals,
			})
		}
	}
	return candidates
}
