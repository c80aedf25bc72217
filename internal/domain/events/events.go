// Package events defines domain events written to the transactional outbox.
package events

import (
	"context"

	"landedcost/internal/core/id"
)

// Event types.
const (
	PurchaseCompleted = "purchase.completed"
	PurchaseCancelled = "purchase.cancelled"
)

// Event is a domain fact to be relayed after commit.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher stores events in the same transaction as the state change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
