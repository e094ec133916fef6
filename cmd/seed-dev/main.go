package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// Seeds a local database with a demo business, products, one customer, a
// purchase order and a delivery receipt so the match and allocation flows can
// be exercised immediately.
func main() {
	username := flag.String("username", "admin", "Admin username")
	password := flag.String("password", "admin123", "Admin password")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()

	business, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Demo Distribution",
		Email: "demo@example.com",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed business: %v\n", err)
		os.Exit(1)
	}
	user, err := models.CreateUser(ctx, &models.NewUser{
		BusinessId: business.ID.String(),
		Name:       "Admin",
		Username:   *username,
		Password:   *password,
		Role:       "A",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed user: %v\n", err)
		os.Exit(1)
	}

	ctx = utils.SetBusinessIdInContext(ctx, business.ID.String())
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)

	widget, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Widget", Sku: "WID-001", UnitPrice: decimal.NewFromInt(25),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed product: %v\n", err)
		os.Exit(1)
	}
	gadget, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Gadget", Sku: "GAD-001", UnitPrice: decimal.NewFromInt(40),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed product: %v\n", err)
		os.Exit(1)
	}

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name: "Acme Trading", Email: "purchasing@acme.example",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed customer: %v\n", err)
		os.Exit(1)
	}

	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		CustomerId:  customer.ID,
		OrderNumber: "PO-0001",
		OrderDate:   time.Now().AddDate(0, 0, -7),
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: widget.ID, Name: widget.Name, OrderedQty: decimal.NewFromInt(10), UnitRate: widget.UnitPrice},
			{ProductId: gadget.ID, Name: gadget.Name, OrderedQty: decimal.NewFromInt(5), UnitRate: gadget.UnitPrice},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed purchase order: %v\n", err)
		os.Exit(1)
	}

	demo := models.DeliveryPurposeDemo
	dr, err := models.CreateDeliveryReceipt(ctx, &models.NewDeliveryReceipt{
		CustomerId:    customer.ID,
		ReceiptNumber: "DR-0001",
		ReceiptDate:   time.Now().AddDate(0, 0, -2),
		Details: []models.NewDeliveryReceiptDetail{
			{ProductId: widget.ID, Name: widget.Name, DeliveredQty: decimal.NewFromInt(6)},
			{ProductId: gadget.ID, Name: gadget.Name, DeliveredQty: decimal.NewFromInt(5)},
			{ProductId: widget.ID, Name: widget.Name + " (demo unit)", DeliveredQty: decimal.NewFromInt(1), Purpose: &demo},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed delivery receipt: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeded business=%s user=%s po=%d dr=%d\n", business.ID, user.Username, po.ID, dr.ID)
}
