package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PaymentTransaction is the processor's ledger of charges and refunds.
type PaymentTransaction struct {
	ID                  uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID       string                       `gorm:"column:transaction_id;not null;uniqueIndex:ux_payment_transactions_txn"`
	Kind                enums.PaymentTransactionKind `gorm:"column:kind;type:text;not null"`
	Method              *enums.PaymentMethod         `gorm:"column:method;type:text"`
	Status              enums.PaymentStatus          `gorm:"column:status;type:text;not null"`
	Amount              decimal.Decimal              `gorm:"column:amount;type:numeric(12,2);not null"`
	Message             string                       `gorm:"column:message;not null"`
	ParentTransactionID *string                      `gorm:"column:parent_transaction_id"`
	CreatedAt           time.Time                    `gorm:"column:created_at;autoCreateTime"`
}

func (p *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
