package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order together with its lines.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindOrder loads an order and its lines; gorm.ErrRecordNotFound when absent.
func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Lines").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateLink(ctx context.Context, link *models.UserOrder) error {
	return r.db.WithContext(ctx).Create(link).Error
}

// FindLink returns the ownership link; gorm.ErrRecordNotFound when the user does not own the order.
func (r *repository) FindLink(ctx context.Context, userID, orderID uuid.UUID) (*models.UserOrder, error) {
	var link models.UserOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND order_id = ?", userID, orderID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repository) LinkExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserOrder{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ChargeReferenced reports whether an order or a checkout saga carries the
// charge.
func (r *repository) ChargeReferenced(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("payment_transaction_id = ?", transactionID).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.CheckoutSaga{}).Where("transaction_id = ?", transactionID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListLinks returns the user's links with orders and lines, newest first.
func (r *repository) ListLinks(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]models.UserOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Order.Lines").
		Where("user_id = ?", userID)
	if !includeArchived {
		query = query.Where("is_archived = ?", false)
	}
	var links []models.UserOrder
	if err := query.Order("created_at DESC").Order("id DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repository) SetArchived(ctx context.Context, linkID uuid.UUID, archived bool) error {
	return r.db.WithContext(ctx).
		Model(&models.UserOrder{}).
		Where("id = ?", linkID).
		Update("is_archived", archived).Error
}

// TransitionStatus applies updates only while the order is still in one of
// the from statuses and reports whether it matched.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// ListAll pages every order newest first, fetching one extra row so callers
// can tell whether another page exists.
func (r *repository) ListAll(ctx context.Context, params pagination.Params, status *enums.OrderStatus) ([]models.Order, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Preload("Lines")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
