package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists checkout sagas.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, saga *models.CheckoutSaga) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSaga, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListStale(ctx context.Context, before time.Time, states []enums.CheckoutState, limit int) ([]models.CheckoutSaga, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a saga repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, saga *models.CheckoutSaga) error {
	return r.db.WithContext(ctx).Create(saga).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSaga, error) {
	var saga models.CheckoutSaga
	if err := r.db.WithContext(ctx).First(&saga, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &saga, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSaga{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListStale returns sagas in states that were last touched before the cutoff, oldest first.
func (r *repository) ListStale(ctx context.Context, before time.Time, states []enums.CheckoutState, limit int) ([]models.CheckoutSaga, error) {
	var sagas []models.CheckoutSaga
	query := r.db.WithContext(ctx).
		Where("state IN ? AND updated_at < ?", states, before).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sagas).Error; err != nil {
		return nil, err
	}
	return sagas, nil
}
