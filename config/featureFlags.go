package config

import (
	"os"
	"strings"
)

// StrictPairUniqueness enforces that at most one live fulfillment row exists per
// (delivery_item, po_item) pair. A second allocation for the same pair is rejected;
// the operator unlinks and re-creates with the combined quantity instead.
//
// Set via env:
// - STRICT_PAIR_UNIQUENESS=false to disable (legacy data imports only)
func StrictPairUniqueness() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_PAIR_UNIQUENESS")))
	if v == "" {
		return true
	}
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// StrictOrderDocImmutability enables guardrails: documents with live fulfillments
// cannot have their items edited below the allocated quantity; they must be
// unlinked first.
//
// Set via env:
// - STRICT_ORDER_DOC_IMMUTABLE=true
func StrictOrderDocImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_ORDER_DOC_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// PublishFulfillmentEvents enables the outbox dispatcher that publishes
// fulfillment created/deleted events to Pub/Sub.
//
// Set via env:
// - PUBLISH_FULFILLMENT_EVENTS=true
func PublishFulfillmentEvents() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PUBLISH_FULFILLMENT_EVENTS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
