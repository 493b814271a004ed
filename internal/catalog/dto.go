package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CategoryDTO is the transport shape of a category.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RatingSummary aggregates active reviews of a product.
type RatingSummary struct {
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int64   `json:"reviewCount"`
}

// ProductDTO is a product enriched with its rating summary.
type ProductDTO struct {
	ID               uuid.UUID           `json:"id"`
	CategoryID       uuid.UUID           `json:"categoryId"`
	Name             string              `json:"name"`
	Slug             string              `json:"slug"`
	ImageURL         *string             `json:"imageUrl,omitempty"`
	AdditionalImages []string            `json:"additionalImages"`
	Price            *decimal.Decimal    `json:"price,omitempty"`
	NewPrice         *decimal.Decimal    `json:"newPrice,omitempty"`
	OldPrice         *decimal.Decimal    `json:"oldPrice,omitempty"`
	Colour           *string             `json:"colour,omitempty"`
	Details          *string             `json:"details,omitempty"`
	Specs            models.ProductSpecs `json:"specs"`
	AverageRating    float64             `json:"averageRating"`
	ReviewCount      int64               `json:"reviewCount"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// ProductListDTO is one page of a product listing.
type ProductListDTO struct {
	Products []ProductDTO `json:"products"`
	Total    int64        `json:"total"`
	Pages    int          `json:"pages"`
}

// CategoryInput creates a category.
type CategoryInput struct {
	Name        string
	Description *string
	IsActive    *bool
	ImageURL    *string
	SortOrder   *int
}

// UpdateCategoryInput carries optional category changes.
type UpdateCategoryInput struct {
	Name        *string
	Description *string
	IsActive    *bool
	ImageURL    *string
	SortOrder   *int
}

// ProductInput creates a product.
type ProductInput struct {
	CategoryID       uuid.UUID
	Name             string
	ImageURL         *string
	AdditionalImages []string
	Price            *decimal.Decimal
	NewPrice         *decimal.Decimal
	OldPrice         *decimal.Decimal
	Colour           *string
	Details          *string
	Specs            models.ProductSpecs
}

// UpdateProductInput carries optional product changes.
type UpdateProductInput struct {
	CategoryID *uuid.UUID
	Name       *string
	ImageURL   *string
	Price      *decimal.Decimal
	NewPrice   *decimal.Decimal
	OldPrice   *decimal.Decimal
	Colour     *string
	Details    *string
	Specs      *models.ProductSpecs
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	Sort       enums.ProductSort
	Page       int
	Limit      int
}

func categoryFromModel(c *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		IsActive:    c.IsActive,
		ImageURL:    c.ImageURL,
		SortOrder:   c.SortOrder,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func productFromModel(p *models.Product, rating RatingSummary) ProductDTO {
	images := []string(p.AdditionalImages)
	if images == nil {
		images = []string{}
	}
	return ProductDTO{
		ID:               p.ID,
		CategoryID:       p.CategoryID,
		Name:             p.Name,
		Slug:             p.Slug,
		ImageURL:         p.ImageURL,
		AdditionalImages: images,
		Price:            p.Price,
		NewPrice:         p.NewPrice,
		OldPrice:         p.OldPrice,
		Colour:           p.Colour,
		Details:          p.Details,
		Specs:            p.Specs,
		AverageRating:    rating.AverageRating,
		ReviewCount:      rating.ReviewCount,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}
