package enums

import "slices"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateCheckout OutboxAggregateType = "checkout"
	AggregateUser     OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCheckout,
	AggregateUser,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType names a domain event written through the outbox.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderCancelled         OutboxEventType = "order_cancelled"
	EventOrderStatusChanged     OutboxEventType = "order_status_changed"
	EventCheckoutNeedsAttention OutboxEventType = "checkout_needs_attention"
	EventEmailRequested         OutboxEventType = "email_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderStatusChanged,
	EventCheckoutNeedsAttention,
	EventEmailRequested,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}

// OutboxDLQErrorReason classifies terminal publish failures.
type OutboxDLQErrorReason string

const (
	OutboxDLQErrorReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQErrorReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
