package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is the per-product snapshot carried by order events.
type OrderLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// OrderCreatedEvent is emitted in the same transaction that persists a paid order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID            `json:"order_id"`
	UserID        uuid.UUID            `json:"user_id"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	PaymentMethod enums.PaymentMethod  `json:"payment_method"`
	TransactionID string               `json:"transaction_id"`
	Delivery      enums.DeliveryMethod `json:"delivery_method"`
	Lines         []OrderLine          `json:"lines"`
	CreatedAt     time.Time            `json:"created_at"`
}

// OrderCancelledEvent is emitted whenever an owner cancels an order.
type OrderCancelledEvent struct {
	OrderID             uuid.UUID         `json:"order_id"`
	UserID              uuid.UUID         `json:"user_id"`
	PreviousStatus      enums.OrderStatus `json:"previous_status"`
	TotalAmount         decimal.Decimal   `json:"total_amount"`
	Refunded            bool              `json:"refunded"`
	RefundTransactionID string            `json:"refund_transaction_id,omitempty"`
	CancelledAt         time.Time         `json:"cancelled_at"`
}

// OrderStatusChangedEvent records an operator moving an order forward.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	UserID    uuid.UUID         `json:"user_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// CheckoutNeedsAttentionEvent flags a saga the reconciler gave up on.
type CheckoutNeedsAttentionEvent struct {
	SagaID        uuid.UUID           `json:"saga_id"`
	UserID        uuid.UUID           `json:"user_id"`
	State         enums.CheckoutState `json:"state"`
	OrderID       *uuid.UUID          `json:"order_id,omitempty"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"last_error,omitempty"`
}

// EmailTemplate selects the message the mail sender renders.
type EmailTemplate string

const (
	EmailTemplateVerify        EmailTemplate = "verify_email"
	EmailTemplatePasswordReset EmailTemplate = "password_reset"
)

// EmailRequestedEvent asks the mail sender to deliver a code to a user.
type EmailRequestedEvent struct {
	UserID    uuid.UUID     `json:"user_id"`
	To        string        `json:"to"`
	FirstName string        `json:"first_name"`
	Template  EmailTemplate `json:"template"`
	Code      string        `json:"code"`
	ExpiresAt time.Time     `json:"expires_at"`
}
