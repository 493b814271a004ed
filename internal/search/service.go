package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

type catalogSearcher interface {
	SearchProducts(ctx context.Context, q string, limit int) ([]models.Product, error)
	SearchCategories(ctx context.Context, q string, limit int) ([]models.Category, error)
	RatingSummaries(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]catalog.RatingSummary, error)
}

// Results is the combined search response.
type Results struct {
	Products   []catalog.ProductDTO  `json:"products"`
	Categories []catalog.CategoryDTO `json:"categories"`
}

type Service interface {
	Search(ctx context.Context, q string, limit int) (*Results, error)
}

type service struct {
	catalog catalogSearcher
}

func NewService(repo catalogSearcher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{catalog: repo}, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Search runs the product and category queries concurrently.
func (s *service) Search(ctx context.Context, q string, limit int) (*Results, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Search query is required")
	}
	limit = normalizeLimit(limit)

	var (
		products   []models.Product
		categories []models.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.catalog.SearchProducts(gctx, q, limit)
		if err != nil {
			return fmt.Errorf("search products: %w", err)
		}
		products = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.catalog.SearchCategories(gctx, q, limit)
		if err != nil {
			return fmt.Errorf("search categories: %w", err)
		}
		categories = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search catalog")
	}

	enriched, err := catalog.EnrichProducts(ctx, s.catalog, products)
	if err != nil {
		return nil, err
	}
	return &Results{Products: enriched, Categories: catalog.CategoriesToDTO(categories)}, nil
}
