package middlewares

import (
	"context"
	"reflect"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap the per-request data loaders injected via middleware.
type Loaders struct {
	productLoader               *dataloader.Loader[int, *models.Product]
	customerLoader              *dataloader.Loader[int, *models.Customer]
	purchaseOrderLoader         *dataloader.Loader[int, *models.PurchaseOrder]
	deliveryReceiptLoader       *dataloader.Loader[int, *models.DeliveryReceipt]
	purchaseOrderDetailLoader   *dataloader.Loader[int, []*models.PurchaseOrderDetail]
	deliveryReceiptDetailLoader *dataloader.Loader[int, []*models.DeliveryReceiptDetail]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	productReader := &productReader{db: conn}
	customerReader := &customerReader{db: conn}
	purchaseOrderReader := &purchaseOrderReader{db: conn}
	deliveryReceiptReader := &deliveryReceiptReader{db: conn}
	purchaseOrderDetailReader := &purchaseOrderDetailReader{db: conn}
	deliveryReceiptDetailReader := &deliveryReceiptDetailReader{db: conn}

	loaders := &Loaders{
		productLoader:               dataloader.NewBatchedLoader(productReader.getProducts, dataloader.WithWait[int, *models.Product](time.Millisecond)),
		customerLoader:              dataloader.NewBatchedLoader(customerReader.getCustomers, dataloader.WithWait[int, *models.Customer](time.Millisecond)),
		purchaseOrderLoader:         dataloader.NewBatchedLoader(purchaseOrderReader.getPurchaseOrders, dataloader.WithWait[int, *models.PurchaseOrder](time.Millisecond)),
		deliveryReceiptLoader:       dataloader.NewBatchedLoader(deliveryReceiptReader.getDeliveryReceipts, dataloader.WithWait[int, *models.DeliveryReceipt](time.Millisecond)),
		purchaseOrderDetailLoader:   dataloader.NewBatchedLoader(purchaseOrderDetailReader.getPurchaseOrderDetails, dataloader.WithWait[int, []*models.PurchaseOrderDetail](time.Millisecond)),
		deliveryReceiptDetailLoader: dataloader.NewBatchedLoader(deliveryReceiptDetailReader.getDeliveryReceiptDetails, dataloader.WithWait[int, []*models.DeliveryReceiptDetail](time.Millisecond)),
	}
	return loaders
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results
// (T must be a struct)
func generateLoaderResults[T models.Data](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]T)
	var resultZero T
	resultMap[0] = resultZero.GetDefault(0).(T)
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data := resultMap[id]
		if reflect.ValueOf(data).IsZero() {
			data = data.GetDefault(id).(T)
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: &data})
	}
	return loaderResults
}

// each id has many related results
func generateLoaderArrayResults[T models.RelatedData](results []T, referenceIds []int) (loaderResults []*dataloader.Result[[]*T]) {
	resultMap := make(map[int][]*T)
	for _, result := range results {
		// copy so the map never points at the loop variable
		copy := result
		resultMap[result.GetReferenceId()] = append(resultMap[result.GetReferenceId()], &copy)
	}
	for _, id := range referenceIds {
		resultArray := resultMap[id]
		loaderResults = append(loaderResults, &dataloader.Result[[]*T]{Data: resultArray})
	}
	return loaderResults
}
