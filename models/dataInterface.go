package models

import (
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
)

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

// interface for dataloader array results
type RelatedData interface {
	GetReferenceId() int
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetDefault(id int) Data {
	return Product{
		ID:        id,
		IsActive:  utils.NewFalse(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (c Customer) GetId() int {
	return c.ID
}

func (c Customer) GetDefault(id int) Data {
	return Customer{
		ID:        id,
		IsActive:  utils.NewFalse(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (po PurchaseOrder) GetId() int {
	return po.ID
}

func (po PurchaseOrder) GetDefault(id int) Data {
	return PurchaseOrder{
		ID:        id,
		OrderDate: time.Now(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (dr DeliveryReceipt) GetId() int {
	return dr.ID
}

func (dr DeliveryReceipt) GetDefault(id int) Data {
	return DeliveryReceipt{
		ID:          id,
		ReceiptDate: time.Now(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func (d PurchaseOrderDetail) GetReferenceId() int {
	return d.PurchaseOrderId
}

func (d DeliveryReceiptDetail) GetReferenceId() int {
	return d.DeliveryReceiptId
}
