package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type orderCreatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *orderCreatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_created")
	}
	row, err := buildOrderCreatedRow(envelope, event)
	if err != nil {
		return err
	}
	return insert(ctx, h.writer, h.logg, row, map[string]any{"order_id": event.OrderID.String()})
}

func buildOrderCreatedRow(envelope types.Envelope, event *payloads.OrderCreatedEvent) (types.OrderEventRow, error) {
	row, err := baseRow(envelope, event)
	if err != nil {
		return row, err
	}
	items, err := analyticswriter.EncodeJSON(event.Lines)
	if err != nil {
		return row, fmt.Errorf("encode items json: %w", err)
	}
	var count int64
	for _, line := range event.Lines {
		count += int64(line.Quantity)
	}
	row.OrderID = stringPtr(event.OrderID.String())
	row.UserID = stringPtr(event.UserID.String())
	row.Status = stringPtr("processing")
	row.PaymentMethod = stringPtr(string(event.PaymentMethod))
	row.TransactionID = stringPtr(event.TransactionID)
	row.AmountCents = centsPtr(event.TotalAmount)
	row.RefundCents = int64Ptr(0)
	row.ItemCount = int64Ptr(count)
	row.Items = items
	return row, nil
}

type orderCancelledHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *orderCancelledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCancelledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_cancelled")
	}
	row, err := baseRow(envelope, event)
	if err != nil {
		return err
	}
	row.OrderID = stringPtr(event.OrderID.String())
	row.UserID = stringPtr(event.UserID.String())
	row.Status = stringPtr("cancelled")
	row.TransactionID = stringPtr(event.RefundTransactionID)
	row.AmountCents = centsPtr(event.TotalAmount)
	row.RefundCents = int64Ptr(0)
	if event.Refunded {
		row.RefundCents = centsPtr(event.TotalAmount)
	}
	return insert(ctx, h.writer, h.logg, row, map[string]any{"order_id": event.OrderID.String()})
}

type orderStatusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *orderStatusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_status_changed")
	}
	row, err := baseRow(envelope, event)
	if err != nil {
		return err
	}
	row.OrderID = stringPtr(event.OrderID.String())
	row.UserID = stringPtr(event.UserID.String())
	row.Status = stringPtr(string(event.To))
	return insert(ctx, h.writer, h.logg, row, map[string]any{"order_id": event.OrderID.String()})
}

type checkoutNeedsAttentionHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *checkoutNeedsAttentionHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.CheckoutNeedsAttentionEvent)
	if !ok {
		return fmt.Errorf("invalid payload for checkout_needs_attention")
	}
	row, err := baseRow(envelope, event)
	if err != nil {
		return err
	}
	if event.OrderID != nil {
		row.OrderID = stringPtr(event.OrderID.String())
	}
	row.UserID = stringPtr(event.UserID.String())
	row.Status = stringPtr(string(event.State))
	row.TransactionID = stringPtr(event.TransactionID)
	return insert(ctx, h.writer, h.logg, row, map[string]any{"saga_id": event.SagaID.String()})
}

func baseRow(envelope types.Envelope, event any) (types.OrderEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.OrderEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
		Payload:    payloadJSON,
	}, nil
}

func insert(ctx context.Context, writer Writer, logg *logger.Logger, row types.OrderEventRow, fields map[string]any) error {
	fields["event_type"] = row.EventType
	logCtx := logg.WithFields(ctx, fields)
	if err := writer.InsertOrderEvent(logCtx, row); err != nil {
		logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}
	logg.Info(logCtx, "order event row inserted")
	return nil
}
