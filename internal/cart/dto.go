package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const (
	MessageItemAdded   = "Product added to cart successfully"
	MessageItemUpdated = "Cart item updated successfully"
	MessageItemRemoved = "Product removed from cart successfully"
	MessageCartCleared = "Cart cleared successfully"
)

// ProductSummary is the product view embedded in cart lines.
type ProductSummary struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	Slug     string           `json:"slug"`
	ImageURL *string          `json:"imageUrl,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	NewPrice *decimal.Decimal `json:"newPrice,omitempty"`
	OldPrice *decimal.Decimal `json:"oldPrice,omitempty"`
	Colour   *string          `json:"colour,omitempty"`
}

// LineDTO is one cart row with its resolved product.
type LineDTO struct {
	ID       uuid.UUID      `json:"id"`
	Product  ProductSummary `json:"product"`
	Quantity int            `json:"quantity"`
	AddedAt  time.Time      `json:"addedAt"`
}

func summaryFromProduct(p models.Product) ProductSummary {
	return ProductSummary{
		ID:       p.ID,
		Name:     p.Name,
		Slug:     p.Slug,
		ImageURL: p.ImageURL,
		Price:    p.Price,
		NewPrice: p.NewPrice,
		OldPrice: p.OldPrice,
		Colour:   p.Colour,
	}
}
