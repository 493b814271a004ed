package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const MessageOrderCreated = "Order created successfully"

// CreateOrderInput is everything a client submits to place an order.
type CreateOrderInput struct {
	Delivery         models.DeliveryDetails
	Payment          payments.PaymentDetails
	Notes            *string
	SaveDeliveryInfo bool
}

// OrderWithPayment is the created order echoed with the processor outcome.
type OrderWithPayment struct {
	orders.OrderDTO
	PaymentResult *payments.PaymentResult `json:"paymentResult"`
}

// CreateOrderResult is returned by a completed checkout.
type CreateOrderResult struct {
	Message string           `json:"message"`
	Order   OrderWithPayment `json:"order"`
}

// IncompleteDetail is attached to CHECKOUT_INCOMPLETE failures so operators
// can locate the saga.
type IncompleteDetail struct {
	OrderID uuid.UUID           `json:"orderId"`
	SagaID  uuid.UUID           `json:"sagaId"`
	State   enums.CheckoutState `json:"state"`
}
