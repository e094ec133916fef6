package models

import (
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"gorm.io/gorm"
)

// FulfillmentEventRecord is the outbox row for one ledger event. The row is
// written in the same transaction as the ledger change; a dispatcher publishes
// it to Pub/Sub after commit.
type FulfillmentEventRecord struct {
	ID            int                    `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	BusinessId    string                 `gorm:"size:64;not null;index" json:"business_id"`
	FulfillmentId string                 `gorm:"size:36;index;not null" json:"fulfillment_id"`
	EventTime     time.Time              `gorm:"index;not null" json:"event_time"`
	Action        FulfillmentEventAction `gorm:"size:30;not null" json:"action"`
	Payload       []byte                 `gorm:"type:blob" json:"payload"`
	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record FulfillmentEventRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:            record.ID,
		BusinessId:    record.BusinessId,
		EventTime:     record.EventTime,
		FulfillmentId: record.FulfillmentId,
		Action:        string(record.Action),
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}

// enqueueFulfillmentEvent writes the outbox row inside the caller's transaction
// so the event and the ledger change commit or roll back together.
func enqueueFulfillmentEvent(tx *gorm.DB, action FulfillmentEventAction, f *Fulfillment) error {
	if !config.PublishFulfillmentEvents() {
		return nil
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	record := FulfillmentEventRecord{
		BusinessId:    f.BusinessId,
		FulfillmentId: f.ID,
		EventTime:     time.Now().UTC(),
		Action:        action,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: f.CorrelationId,
	}
	return tx.Create(&record).Error
}
