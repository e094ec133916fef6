package models

import (
	"log"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Customer{}, &Product{},
		&PurchaseOrder{}, &PurchaseOrderDetail{},
		&DeliveryReceipt{}, &DeliveryReceiptDetail{},
		&Fulfillment{}, &FulfillmentEventRecord{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
