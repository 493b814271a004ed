package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const consumerName = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type deduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service projects order events from the orders subscription into the
// warehouse. Each event is handled at most once per idempotency window.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	dedupe       deduper
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, dedupe deduper, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case dedupe == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, dedupe: dedupe, logg: logg}, nil
}

// Run blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process reports whether the message should be redelivered. Malformed and
// untracked events are acked so they do not loop.
func (s *Service) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	logCtx := s.logg.WithField(ctx, "message_id", messageID)

	envelope, eventID, err := decodeEnvelope(attrs, data)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping malformed analytics event")
		return false
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   string(envelope.EventType),
		"aggregate_id": envelope.AggregateID,
		"occurred_at":  envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	already, err := s.dedupe.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if already {
		s.logg.Info(logCtx, "event already processed")
		return false
	}

	err = s.handler.Handle(logCtx, envelope)
	switch {
	case err == nil:
		s.logg.Debug(logCtx, "analytics event recorded")
		return false
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Debug(logCtx, "event type not tracked")
		return false
	default:
		s.logg.Error(logCtx, "analytics handler failed", err)
		if delErr := s.dedupe.Delete(logCtx, consumerName, eventID); delErr != nil {
			s.logg.Error(logCtx, "failed to release idempotency key", delErr)
		}
		return true
	}
}

// decodeEnvelope merges the outbox payload envelope with the routing
// attributes set by the publisher. The body wins over attributes for the
// event id and timestamp.
func decodeEnvelope(attrs map[string]string, data []byte) (types.Envelope, uuid.UUID, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &stored); err != nil {
		return types.Envelope{}, uuid.Nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(attr(attrs, "event_type"))
	if err != nil {
		return types.Envelope{}, uuid.Nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr(attrs, "aggregate_type"))
	if err != nil {
		return types.Envelope{}, uuid.Nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr(attrs, "aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, uuid.Nil, errors.New("aggregate_id missing")
	}

	rawID := strings.TrimSpace(stored.EventID)
	if rawID == "" {
		rawID = attr(attrs, "event_id")
	}
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return types.Envelope{}, uuid.Nil, fmt.Errorf("event_id %q: %w", rawID, err)
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr(attrs, "created_at")); err == nil {
			occurredAt = parsed
		}
	}

	return types.Envelope{
		EventID:       eventID.String(),
		EventType:     eventType,
		Version:       stored.Version,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, eventID, nil
}

func attr(attrs map[string]string, key string) string {
	return strings.TrimSpace(attrs[key])
}
