package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
)

type Review struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_reviews_user_product"`
	ProductID uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_reviews_user_product;index"`
	Rating    int                `gorm:"column:rating;not null"`
	Comment   string             `gorm:"column:comment;not null"`
	Images    dbtypes.StringList `gorm:"column:images;type:jsonb"`
	IsActive  bool               `gorm:"column:is_active;not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
