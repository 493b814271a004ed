package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema.
type OrderEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	OrderID       *string            `bigquery:"order_id"`
	UserID        *string            `bigquery:"user_id"`
	Status        *string            `bigquery:"status"`
	PaymentMethod *string            `bigquery:"payment_method"`
	TransactionID *string            `bigquery:"transaction_id"`
	AmountCents   *int64             `bigquery:"amount_cents"`
	RefundCents   *int64             `bigquery:"refund_cents"`
	ItemCount     *int64             `bigquery:"item_count"`
	Items         cbigquery.NullJSON `bigquery:"items"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}
