package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// Deleting a receipt destroys every fulfillment drawn from it, so a cached
// order status primed before the delete must not survive it. Needs redis to
// observe: without redis the status cache is a no-op.
func TestReceiptDeletionRefreshesOrderStatus(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "fulfillment_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Cascade Test Biz",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	widget, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Widget",
		Sku:  "WID-001",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	acme, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		CustomerId:  acme.ID,
		OrderNumber: "PO-CASCADE-1",
		OrderDate:   time.Now(),
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: widget.ID, OrderedQty: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	dr, err := models.CreateDeliveryReceipt(ctx, &models.NewDeliveryReceipt{
		CustomerId:    acme.ID,
		ReceiptNumber: "DR-CASCADE-1",
		ReceiptDate:   time.Now(),
		Details: []models.NewDeliveryReceiptDetail{
			{ProductId: widget.ID, DeliveredQty: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateDeliveryReceipt: %v", err)
	}

	results, err := models.CommitAllocations(ctx, []models.NewAllocation{
		{
			DeliveryItemId: dr.Details[0].ID,
			PoItemId:       po.Details[0].ID,
			Qty:            decimal.NewFromInt(10),
		},
	})
	if err != nil || !results[0].Success {
		t.Fatalf("CommitAllocations: %v %+v", err, results)
	}

	// Prime the cache with the fulfilled status.
	status, err := models.GetPurchaseOrderStatus(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrderStatus: %v", err)
	}
	if status != models.FulfillmentStatusFulfilled {
		t.Fatalf("expected Fulfilled before delete, got %s", status)
	}

	if _, err := models.DeleteDeliveryReceipt(ctx, dr.ID); err != nil {
		t.Fatalf("DeleteDeliveryReceipt: %v", err)
	}

	// The very next read must reflect the destroyed fulfillments, not the
	// cached pre-delete status.
	status, err = models.GetPurchaseOrderStatus(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrderStatus after delete: %v", err)
	}
	if status != models.FulfillmentStatusUnfulfilled {
		t.Fatalf("expected Unfulfilled after receipt deletion, got %s", status)
	}

	remaining, err := models.ComputeOrderItemCapacity(ctx, po.Details[0].ID)
	if err != nil {
		t.Fatalf("ComputeOrderItemCapacity: %v", err)
	}
	if remaining.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("expected full ordered qty restored, got %s", remaining.String())
	}
}
