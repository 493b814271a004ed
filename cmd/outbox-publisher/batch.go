package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type batchSummary struct {
	claimed      int
	published    int
	retrying     int
	deadLettered int
}

// delivery tracks one claimed row from resolution to settlement.
type delivery struct {
	event  models.OutboxEvent
	topic  string
	result publishResult
	err    error
}

// processBatch claims up to batchSize rows, hands every resolvable row to
// Pub/Sub before waiting on any result, then settles each row in claim order.
func (s *Service) processBatch(ctx context.Context) (batchSummary, error) {
	var summary batchSummary
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		summary = batchSummary{claimed: len(events)}
		if len(events) == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		deliveries := make([]delivery, len(events))
		for i, event := range events {
			deliveries[i] = s.dispatch(publishCtx, event)
		}
		for i := range deliveries {
			d := &deliveries[i]
			if d.err == nil {
				_, d.err = d.result.Get(publishCtx)
			}
			if err := s.settle(ctx, tx, d, &summary); err != nil {
				return err
			}
		}
		return nil
	})
	return summary, err
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) delivery {
	d := delivery{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		d.err = registry.NewNonRetryableError(err)
		return d
	}
	d.topic = resolved.Descriptor.Topic

	pub := s.publisherOf(d.topic)
	if pub == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", d.topic))
		return d
	}
	d.result = pub.Publish(ctx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if d.result == nil {
		d.err = registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", d.topic))
	}
	return d
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d *delivery, summary *batchSummary) error {
	event := d.event
	if d.err == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID, s.now()); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(d.topic)
		summary.published++
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(d.err, &nonRetry) {
		summary.deadLettered++
		return s.deadLetter(ctx, tx, d, enums.OutboxDLQErrorReasonNonRetryable, d.err)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		summary.deadLettered++
		return s.deadLetter(ctx, tx, d, enums.OutboxDLQErrorReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", d.err))
	}

	s.logg.Warn(s.logg.WithFields(ctx, s.rowFields(d, map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"error":         d.err.Error(),
	})), "outbox publish failed, will retry")
	s.metrics.IncFailed(d.topic)
	if err := s.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	summary.retrying++
	return nil
}

// deadLetter copies the row into the DLQ and stops further attempts.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, d *delivery, reason enums.OutboxDLQErrorReason, cause error) error {
	event := d.event
	s.logg.Warn(s.logg.WithFields(ctx, s.rowFields(d, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	})), "outbox event dead-lettered")
	s.metrics.IncDeadLettered(string(reason))

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) rowFields(d *delivery, extra map[string]any) map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}
