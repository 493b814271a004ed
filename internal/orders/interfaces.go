package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their user links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CreateLink(ctx context.Context, link *models.UserOrder) error
	FindLink(ctx context.Context, userID, orderID uuid.UUID) (*models.UserOrder, error)
	LinkExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	ChargeReferenced(ctx context.Context, transactionID string) (bool, error)
	ListLinks(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]models.UserOrder, error)
	SetArchived(ctx context.Context, linkID uuid.UUID, archived bool) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error)
	ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Refunder returns money for a charge.
type Refunder interface {
	RefundPayment(ctx context.Context, transactionID string, amount *decimal.Decimal) (*payments.PaymentResult, error)
	Refundable(ctx context.Context, transactionID string) (decimal.Decimal, error)
}
