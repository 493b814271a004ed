package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DeliveryDetails is the shipping destination captured at checkout.
type DeliveryDetails struct {
	Address        string               `json:"address" gorm:"column:address;not null"`
	AddressDetails *string              `json:"addressDetails,omitempty" gorm:"column:address_details"`
	PostalCode     string               `json:"postalCode" gorm:"column:postal_code;not null"`
	City           string               `json:"city" gorm:"column:city;not null"`
	ContactPhone   string               `json:"contactPhone" gorm:"column:contact_phone;not null"`
	Method         enums.DeliveryMethod `json:"deliveryMethod" gorm:"column:method;type:text;not null"`
}

// OrderPayment is the payment outcome embedded in the order record.
type OrderPayment struct {
	Method        enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	TransactionID *string             `gorm:"column:transaction_id"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	ProcessedAt   *time.Time          `gorm:"column:processed_at"`
}

// Order is the immutable record of a completed checkout. TotalAmount always
// equals the sum of its lines.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	TotalAmount decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Delivery    DeliveryDetails   `gorm:"embedded;embeddedPrefix:delivery_"`
	Payment     OrderPayment      `gorm:"embedded;embeddedPrefix:payment_"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Notes       *string           `gorm:"column:notes"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	Lines       []OrderLine       `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderLine is a product snapshot captured when the order was placed.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Subtotal returns price × quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// UserOrder links a user to an order they own.
type UserOrder struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_orders_user_order"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_user_orders_user_order"`
	IsArchived bool      `gorm:"column:is_archived;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
	Order      *Order    `gorm:"foreignKey:OrderID"`
}

func (u *UserOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
