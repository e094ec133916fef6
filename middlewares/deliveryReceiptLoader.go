package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type deliveryReceiptReader struct {
	db *gorm.DB
}

func (r *deliveryReceiptReader) getDeliveryReceipts(ctx context.Context, ids []int) []*dataloader.Result[*models.DeliveryReceipt] {
	var results []models.DeliveryReceipt
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.DeliveryReceipt](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

type deliveryReceiptDetailReader struct {
	db *gorm.DB
}

func (r *deliveryReceiptDetailReader) getDeliveryReceiptDetails(ctx context.Context, ids []int) []*dataloader.Result[[]*models.DeliveryReceiptDetail] {
	var results []models.DeliveryReceiptDetail
	err := r.db.WithContext(ctx).Where("delivery_receipt_id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[[]*models.DeliveryReceiptDetail](len(ids), err)
	}

	return generateLoaderArrayResults(results, ids)
}

func GetDeliveryReceipt(ctx context.Context, id int) (*models.DeliveryReceipt, error) {
	loaders := For(ctx)
	return loaders.deliveryReceiptLoader.Load(ctx, id)()
}

func GetDeliveryReceiptDetails(ctx context.Context, deliveryReceiptId int) ([]*models.DeliveryReceiptDetail, error) {
	loaders := For(ctx)
	return loaders.deliveryReceiptDetailLoader.Load(ctx, deliveryReceiptId)()
}
