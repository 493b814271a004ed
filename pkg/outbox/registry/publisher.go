package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and which aggregate
// it must belong to.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        decoderFunc
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish; the relay
// dead-letters it on first sight.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventRegistry is the relay's routing table.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []error
	if cfg.OrdersTopic == "" {
		missing = append(missing, errors.New("orders topic is required"))
	}
	if cfg.NotificationTopic == "" {
		missing = append(missing, errors.New("notification topic is required"))
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	reg := &EventRegistry{routes: map[enums.OutboxEventType]EventDescriptor{}}
	reg.route(cfg.OrdersTopic, enums.AggregateOrder,
		enums.EventOrderCreated, enums.EventOrderCancelled, enums.EventOrderStatusChanged)
	reg.route(cfg.OrdersTopic, enums.AggregateCheckout, enums.EventCheckoutNeedsAttention)
	reg.route(cfg.NotificationTopic, enums.AggregateUser, enums.EventEmailRequested)
	return reg, nil
}

// route binds event types to a topic using the v1 payload decoders.
func (r *EventRegistry) route(topic string, aggregate enums.OutboxAggregateType, events ...enums.OutboxEventType) {
	for _, et := range events {
		decode, ok := currentPayloads[et]
		if !ok {
			continue
		}
		r.routes[et] = EventDescriptor{EventType: et, AggregateType: aggregate, Topic: topic, decode: decode}
	}
}

// Topics returns the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for _, d := range r.routes {
		topics = append(topics, d.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve checks a claimed row against its route and decodes the payload.
// Every failure is permanent: retrying an unreadable row cannot help.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case desc.AggregateType != row.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", row.EventType)
	}

	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

// currentPayloads holds the v1 decoder for every published event type.
var currentPayloads = map[enums.OutboxEventType]decoderFunc{
	enums.EventOrderCreated:           jsonDecoder[payloads.OrderCreatedEvent](enums.EventOrderCreated, 1),
	enums.EventOrderCancelled:         jsonDecoder[payloads.OrderCancelledEvent](enums.EventOrderCancelled, 1),
	enums.EventOrderStatusChanged:     jsonDecoder[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, 1),
	enums.EventCheckoutNeedsAttention: jsonDecoder[payloads.CheckoutNeedsAttentionEvent](enums.EventCheckoutNeedsAttention, 1),
	enums.EventEmailRequested:         jsonDecoder[payloads.EmailRequestedEvent](enums.EventEmailRequested, 1),
}
