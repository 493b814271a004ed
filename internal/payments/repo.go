package payments

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository manages persistence for the processor ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*models.PaymentTransaction, error)
	ListRefunds(ctx context.Context, parentTransactionID string) ([]models.PaymentTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// FindByTransactionID returns nil, nil when no ledger row carries the id.
func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListRefunds(ctx context.Context, parentTransactionID string) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("parent_transaction_id = ? AND kind = ?", parentTransactionID, enums.PaymentTransactionRefund).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
