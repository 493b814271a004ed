package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const mailerConsumer = "mailer"

type deduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer delivers email_requested events from the notification subscription.
type Consumer struct {
	sender       Sender
	subscription *pubsub.Subscriber
	idempotency  deduper
	logg         *logger.Logger
}

func NewConsumer(sender Sender, subscription *pubsub.Subscriber, manager deduper, logg *logger.Logger) (*Consumer, error) {
	switch {
	case sender == nil:
		return nil, errors.New("mailer: sender required")
	case subscription == nil:
		return nil, errors.New("mailer: notification subscription required")
	case manager == nil:
		return nil, errors.New("mailer: idempotency store required")
	case logg == nil:
		return nil, errors.New("mailer: logger required")
	}
	return &Consumer{sender: sender, subscription: subscription, idempotency: manager, logg: logg}, nil
}

// Run blocks until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// emailJob is a decoded email_requested message ready to send.
type emailJob struct {
	eventID uuid.UUID
	event   payloads.EmailRequestedEvent
	email   Email
}

func decodeEmailJob(data []byte) (emailJob, error) {
	var job emailJob
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return job, fmt.Errorf("decode envelope: %w", err)
	}
	id, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return job, fmt.Errorf("event id: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, &job.event); err != nil {
		return job, fmt.Errorf("decode payload: %w", err)
	}
	if job.email, err = Render(job.event); err != nil {
		return job, fmt.Errorf("render: %w", err)
	}
	job.eventID = id
	return job, nil
}

// process reports whether the message should be redelivered. Messages that
// can never be sent are acked and logged.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := attrs["event_type"]
	if eventType != string(enums.EventEmailRequested) {
		return false
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})

	job, err := decodeEmailJob(data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undeliverable email message", err)
		return false
	}

	seen, err := c.idempotency.CheckAndMarkProcessed(ctx, mailerConsumer, job.eventID)
	switch {
	case err != nil:
		c.logg.Error(logCtx, "idempotency check failed", err)
		return true
	case seen:
		c.logg.Info(logCtx, "event already processed")
		return false
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"user_id":  job.event.UserID.String(),
		"template": string(job.event.Template),
	})
	if err := c.sender.Send(logCtx, job.email); err != nil {
		c.logg.Error(logCtx, "email delivery failed", err)
		// release the marker so the redelivery is not mistaken for a duplicate
		if derr := c.idempotency.Delete(context.WithoutCancel(ctx), mailerConsumer, job.eventID); derr != nil {
			c.logg.Warn(logCtx, "could not clear idempotency marker")
		}
		return true
	}
	return false
}
