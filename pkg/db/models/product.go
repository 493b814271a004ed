package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
)

// ProductSpecs holds the free-form technical attributes shown on product pages.
type ProductSpecs struct {
	Memory          string `json:"memory,omitempty"`
	ScreenSize      string `json:"screenSize,omitempty"`
	CPU             string `json:"cpu,omitempty"`
	NumberOfCores   string `json:"numberOfCores,omitempty"`
	MainCamera      string `json:"mainCamera,omitempty"`
	FrontCamera     string `json:"frontCamera,omitempty"`
	BatteryCapacity string `json:"batteryCapacity,omitempty"`
}

type Product struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID       uuid.UUID          `gorm:"column:category_id;type:uuid;not null;index"`
	Name             string             `gorm:"column:name;not null;uniqueIndex:ux_products_name"`
	Slug             string             `gorm:"column:slug;not null;uniqueIndex:ux_products_slug"`
	ImageURL         *string            `gorm:"column:image_url"`
	AdditionalImages dbtypes.StringList `gorm:"column:additional_images;type:jsonb"`
	Price            *decimal.Decimal   `gorm:"column:price;type:numeric(12,2)"`
	NewPrice         *decimal.Decimal   `gorm:"column:new_price;type:numeric(12,2)"`
	OldPrice         *decimal.Decimal   `gorm:"column:old_price;type:numeric(12,2)"`
	Colour           *string            `gorm:"column:colour"`
	Details          *string            `gorm:"column:details"`
	Specs            ProductSpecs       `gorm:"column:specs;type:jsonb;serializer:json"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// EffectivePrice is the price charged at checkout: the promotional price when
// set, else the list price, else zero.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.NewPrice != nil {
		return *p.NewPrice
	}
	if p.Price != nil {
		return *p.Price
	}
	return decimal.Zero
}

// ProductLike records that a user liked a product.
type ProductLike struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
