package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const (
	MessageOrderCancelled = "Order cancelled successfully"
	MessageOrderArchived  = "Order archived successfully"
)

// LineDTO is the price snapshot of one ordered product.
type LineDTO struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// PaymentDetailsDTO is the payment outcome stored on the order.
type PaymentDetailsDTO struct {
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	TransactionID *string             `json:"transactionId,omitempty"`
	Amount        decimal.Decimal     `json:"amount"`
	ProcessedAt   *time.Time          `json:"processedAt,omitempty"`
}

// OrderDTO is the transport shape of an order.
type OrderDTO struct {
	ID              uuid.UUID              `json:"id"`
	UserID          uuid.UUID              `json:"userId"`
	Products        []LineDTO              `json:"products"`
	TotalAmount     decimal.Decimal        `json:"totalAmount"`
	DeliveryDetails models.DeliveryDetails `json:"deliveryDetails"`
	PaymentDetails  PaymentDetailsDTO      `json:"paymentDetails"`
	Status          enums.OrderStatus      `json:"status"`
	Notes           *string                `json:"notes,omitempty"`
	CancelledAt     *time.Time             `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// OrderList is a cursor page of orders for operators.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// HistoryEntry is the compact order summary shown on a user's profile.
type HistoryEntry struct {
	OrderID     uuid.UUID         `json:"orderId"`
	Products    []LineDTO         `json:"products"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	OrderDate   time.Time         `json:"orderDate"`
	Status      enums.OrderStatus `json:"status"`
}

// CancelResult is returned by a successful cancellation.
type CancelResult struct {
	Message string    `json:"message"`
	Order   *OrderDTO `json:"order"`
}

// ListAllParams filters the operator order listing.
type ListAllParams struct {
	Limit  int
	Cursor string
	Status *enums.OrderStatus
}

func linesFromModel(lines []models.OrderLine) []LineDTO {
	out := make([]LineDTO, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineDTO{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Price:       line.Price,
			Quantity:    line.Quantity,
		})
	}
	return out
}

// FromModel maps a persisted order with its lines to the transport shape.
func FromModel(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	return &OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		Products:        linesFromModel(order.Lines),
		TotalAmount:     order.TotalAmount,
		DeliveryDetails: order.Delivery,
		PaymentDetails: PaymentDetailsDTO{
			PaymentMethod: order.Payment.Method,
			PaymentStatus: order.Payment.Status,
			TransactionID: order.Payment.TransactionID,
			Amount:        order.Payment.Amount,
			ProcessedAt:   order.Payment.ProcessedAt,
		},
		Status:      order.Status,
		Notes:       order.Notes,
		CancelledAt: order.CancelledAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}
