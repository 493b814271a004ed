package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type itemRepository struct {
	db *gorm.DB
}

// NewRepository binds the cart repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &itemRepository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *itemRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &itemRepository{db: tx}
}

// ListByUser returns the user's rows in the order they were added.
func (r *itemRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Increment adds qty to an existing row and reports whether one matched.
func (r *itemRepository) Increment(ctx context.Context, userID, productID uuid.UUID, qty int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *itemRepository) Insert(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// SetQuantity overwrites the quantity of an existing row and reports whether one matched.
func (r *itemRepository) SetQuantity(ctx context.Context, userID, productID uuid.UUID, qty int, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]any{
			"quantity":   qty,
			"updated_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *itemRepository) Delete(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{}).Error
}

func (r *itemRepository) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// ConsumeItems takes the checked-out quantities off the user's rows, removing
// rows the snapshot covers in full. Quantity added after the snapshot stays.
func (r *itemRepository) ConsumeItems(ctx context.Context, userID uuid.UUID, items []models.SagaItem) (int64, error) {
	var removed int64
	for _, item := range items {
		res := r.db.WithContext(ctx).
			Where("user_id = ? AND id = ? AND quantity <= ?", userID, item.CartItemID, item.Quantity).
			Delete(&models.CartItem{})
		if res.Error != nil {
			return removed, res.Error
		}
		if res.RowsAffected > 0 {
			removed += res.RowsAffected
			continue
		}
		err := r.db.WithContext(ctx).
			Model(&models.CartItem{}).
			Where("user_id = ? AND id = ?", userID, item.CartItemID).
			Update("quantity", gorm.Expr("quantity - ?", item.Quantity)).Error
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}
