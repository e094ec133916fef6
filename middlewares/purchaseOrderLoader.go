package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type purchaseOrderReader struct {
	db *gorm.DB
}

func (r *purchaseOrderReader) getPurchaseOrders(ctx context.Context, ids []int) []*dataloader.Result[*models.PurchaseOrder] {
	var results []models.PurchaseOrder
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.PurchaseOrder](len(ids), err)
	}

	return generateLoaderResults(results, ids)
}

type purchaseOrderDetailReader struct {
	db *gorm.DB
}

func (r *purchaseOrderDetailReader) getPurchaseOrderDetails(ctx context.Context, ids []int) []*dataloader.Result[[]*models.PurchaseOrderDetail] {
	var results []models.PurchaseOrderDetail
	err := r.db.WithContext(ctx).Where("purchase_order_id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[[]*models.PurchaseOrderDetail](len(ids), err)
	}

	return generateLoaderArrayResults(results, ids)
}

func GetPurchaseOrder(ctx context.Context, id int) (*models.PurchaseOrder, error) {
	loaders := For(ctx)
	return loaders.purchaseOrderLoader.Load(ctx, id)()
}

func GetPurchaseOrderDetails(ctx context.Context, purchaseOrderId int) ([]*models.PurchaseOrderDetail, error) {
	loaders := For(ctx)
	return loaders.purchaseOrderDetailLoader.Load(ctx, purchaseOrderId)()
}
