package models

type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "Unfulfilled"
	FulfillmentStatusPartial     FulfillmentStatus = "Partial"
	FulfillmentStatusFulfilled   FulfillmentStatus = "Fulfilled"
)

// Rank orders statuses: Unfulfilled < Partial < Fulfilled.
func (s FulfillmentStatus) Rank() int {
	switch s {
	case FulfillmentStatusPartial:
		return 1
	case FulfillmentStatusFulfilled:
		return 2
	default:
		return 0
	}
}

// DeliveryPurpose classifies non-commercial delivery items. Purpose-tagged items
// never satisfy a purchase order.
type DeliveryPurpose string

const (
	DeliveryPurposeWarranty    DeliveryPurpose = "warranty"
	DeliveryPurposeReplacement DeliveryPurpose = "replacement"
	DeliveryPurposeDemo        DeliveryPurpose = "demo"
)

func (p DeliveryPurpose) Valid() bool {
	switch p {
	case DeliveryPurposeWarranty, DeliveryPurposeReplacement, DeliveryPurposeDemo:
		return true
	}
	return false
}

type FulfillmentEventAction string

const (
	FulfillmentEventCreated FulfillmentEventAction = "FulfillmentCreated"
	FulfillmentEventDeleted FulfillmentEventAction = "FulfillmentDeleted"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
