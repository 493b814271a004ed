package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository defines the persistence surface required by the cart service and
// the checkout saga.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Increment(ctx context.Context, userID, productID uuid.UUID, qty int, at time.Time) (bool, error)
	Insert(ctx context.Context, item *models.CartItem) error
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, qty int, at time.Time) (bool, error)
	Delete(ctx context.Context, userID, productID uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
	ConsumeItems(ctx context.Context, userID uuid.UUID, items []models.SagaItem) (int64, error)
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type userChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
