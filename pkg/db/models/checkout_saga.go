package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// SagaItem is the cart row a checkout consumed.
type SagaItem struct {
	CartItemID uuid.UUID `json:"cartItemId"`
	ProductID  uuid.UUID `json:"productId"`
	Quantity   int       `json:"quantity"`
}

// CheckoutSaga persists how far a checkout progressed so an interrupted one
// can be resumed or flagged.
type CheckoutSaga struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	State         enums.CheckoutState `gorm:"column:state;type:text;not null;index"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Items         []SagaItem          `gorm:"column:items;type:jsonb;serializer:json"`
	OrderID       *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	TransactionID *string             `gorm:"column:transaction_id"`
	Attempts      int                 `gorm:"column:attempts;not null"`
	LastError     *string             `gorm:"column:last_error"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *CheckoutSaga) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// CartItemIDs returns the ids of the snapshotted cart rows.
func (s CheckoutSaga) CartItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.CartItemID)
	}
	return ids
}
