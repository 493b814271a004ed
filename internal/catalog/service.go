package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	MessageCategoryDeleted = "Category deleted successfully"
	MessageProductDeleted  = "Product deleted successfully"
	MessageProductLiked    = "Product liked successfully"
	MessageProductUnliked  = "Product unliked successfully"
)

type userChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service exposes catalog operations.
type Service interface {
	CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]CategoryDTO, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (*types.MessageResponse, error)

	CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (*types.MessageResponse, error)
	ListProducts(ctx context.Context, filter ProductFilter) (*ProductListDTO, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID, filter ProductFilter) (*ProductListDTO, error)

	AddImages(ctx context.Context, id uuid.UUID, urls []string) (*ProductDTO, error)
	RemoveImage(ctx context.Context, id uuid.UUID, url string) (*ProductDTO, error)
	SetMainImage(ctx context.Context, id uuid.UUID, url string) (*ProductDTO, error)
	Rating(ctx context.Context, productID uuid.UUID) (*RatingSummary, error)

	Like(ctx context.Context, userID, productID uuid.UUID) (*types.MessageResponse, error)
	Unlike(ctx context.Context, userID, productID uuid.UUID) (*types.MessageResponse, error)
	ListLiked(ctx context.Context, userID uuid.UUID) ([]ProductDTO, error)
}

type service struct {
	repo  *Repository
	users userChecker
}

// NewService builds the catalog service.
func NewService(repo *Repository, users userChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user checker required")
	}
	return &service{repo: repo, users: users}, nil
}

func categoryConflict(name string) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "Category with name %q already exists", name)
}

func productConflict(name string) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "Product with name %q already exists", name)
}

func categoryNotFound(id uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "Category with ID %s not found", id)
}

func productNotFound(id uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "Product with ID %q not found", id.String())
}

func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	taken, err := s.repo.CategoryNameTaken(ctx, name, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category name")
	}
	if taken {
		return nil, categoryConflict(name)
	}

	category := &models.Category{
		Name:        name,
		Slug:        slug.Make(name),
		Description: input.Description,
		IsActive:    true,
		ImageURL:    input.ImageURL,
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
	if input.SortOrder != nil {
		category.SortOrder = *input.SortOrder
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, categoryConflict(name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create category")
	}
	dto := categoryFromModel(category)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context, activeOnly bool) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	return CategoriesToDTO(rows), nil
}

func (s *service) loadCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, categoryNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	return category, nil
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.loadCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := categoryFromModel(category)
	return &dto, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error) {
	category, err := s.loadCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
		}
		if name != category.Name {
			taken, err := s.repo.CategoryNameTaken(ctx, name, id)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category name")
			}
			if taken {
				return nil, categoryConflict(name)
			}
			category.Name = name
			category.Slug = slug.Make(name)
		}
	}
	if input.Description != nil {
		category.Description = input.Description
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
	if input.ImageURL != nil {
		category.ImageURL = input.ImageURL
	}
	if input.SortOrder != nil {
		category.SortOrder = *input.SortOrder
	}

	if err := s.repo.SaveCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, categoryConflict(category.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update category")
	}
	dto := categoryFromModel(category)
	return &dto, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) (*types.MessageResponse, error) {
	deleted, err := s.repo.DeleteCategory(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete category")
	}
	if !deleted {
		return nil, categoryNotFound(id)
	}
	return &types.MessageResponse{Message: MessageCategoryDeleted}, nil
}

func validatePrices(prices ...*decimal.Decimal) error {
	for _, price := range prices {
		if price != nil && price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "prices must be non-negative")
		}
	}
	return nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if err := validatePrices(input.Price, input.NewPrice, input.OldPrice); err != nil {
		return nil, err
	}
	if _, err := s.loadCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}
	taken, err := s.repo.ProductNameTaken(ctx, name, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product name")
	}
	if taken {
		return nil, productConflict(name)
	}

	product := &models.Product{
		CategoryID:       input.CategoryID,
		Name:             name,
		Slug:             slug.Make(name),
		ImageURL:         input.ImageURL,
		AdditionalImages: dbtypes.StringList(append([]string{}, input.AdditionalImages...)),
		Price:            input.Price,
		NewPrice:         input.NewPrice,
		OldPrice:         input.OldPrice,
		Colour:           input.Colour,
		Details:          input.Details,
		Specs:            input.Specs,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, productConflict(name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	dto := productFromModel(product, RatingSummary{})
	return &dto, nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, productNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) withRating(ctx context.Context, product *models.Product) (*ProductDTO, error) {
	rating, err := s.repo.RatingSummary(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rating")
	}
	dto := productFromModel(product, rating)
	return &dto, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withRating(ctx, product)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validatePrices(input.Price, input.NewPrice, input.OldPrice); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
		}
		if name != product.Name {
			taken, err := s.repo.ProductNameTaken(ctx, name, id)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product name")
			}
			if taken {
				return nil, productConflict(name)
			}
			product.Name = name
			product.Slug = slug.Make(name)
		}
	}
	if input.CategoryID != nil && *input.CategoryID != product.CategoryID {
		if _, err := s.loadCategory(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = *input.CategoryID
	}
	applyProductUpdate(product, input)

	if err := s.repo.SaveProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, productConflict(product.Name)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return s.withRating(ctx, product)
}

func applyProductUpdate(product *models.Product, input UpdateProductInput) {
	if input.ImageURL != nil {
		product.ImageURL = input.ImageURL
	}
	if input.Price != nil {
		product.Price = input.Price
	}
	if input.NewPrice != nil {
		product.NewPrice = input.NewPrice
	}
	if input.OldPrice != nil {
		product.OldPrice = input.OldPrice
	}
	if input.Colour != nil {
		product.Colour = input.Colour
	}
	if input.Details != nil {
		product.Details = input.Details
	}
	if input.Specs != nil {
		product.Specs = *input.Specs
	}
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) (*types.MessageResponse, error) {
	deleted, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if !deleted {
		return nil, productNotFound(id)
	}
	return &types.MessageResponse{Message: MessageProductDeleted}, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) (*ProductListDTO, error) {
	if filter.Page < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page must be at least 1")
	}
	if filter.Limit < 0 || filter.Limit > pagination.MaxLimit {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "limit must be between 1 and %d", pagination.MaxLimit)
	}
	if filter.Sort != "" && !filter.Sort.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid sort %q", filter.Sort)
	}
	if filter.PriceMin != nil && filter.PriceMax != nil && filter.PriceMin.GreaterThan(*filter.PriceMax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "priceMin must not exceed priceMax")
	}

	rows, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	products, err := s.enrich(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &ProductListDTO{
		Products: products,
		Total:    total,
		Pages:    pagination.Pages(total, filter.Limit),
	}, nil
}

func (s *service) ListByCategory(ctx context.Context, categoryID uuid.UUID, filter ProductFilter) (*ProductListDTO, error) {
	filter.CategoryID = &categoryID
	return s.ListProducts(ctx, filter)
}

func (s *service) enrich(ctx context.Context, rows []models.Product) ([]ProductDTO, error) {
	return EnrichProducts(ctx, s.repo, rows)
}

type ratingReader interface {
	RatingSummaries(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]RatingSummary, error)
}

// EnrichProducts attaches rating summaries with one aggregate query.
func EnrichProducts(ctx context.Context, ratings ratingReader, rows []models.Product) ([]ProductDTO, error) {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	summaries, err := ratings.RatingSummaries(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ratings")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, productFromModel(&rows[i], summaries[rows[i].ID]))
	}
	return out, nil
}

// CategoriesToDTO maps category rows to their transport shape.
func CategoriesToDTO(rows []models.Category) []CategoryDTO {
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, categoryFromModel(&rows[i]))
	}
	return out
}

func (s *service) AddImages(ctx context.Context, id uuid.UUID, urls []string) (*ProductDTO, error) {
	if len(urls) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one image is required")
	}
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product.AdditionalImages = append(product.AdditionalImages, urls...)
	return s.saveImages(ctx, product)
}

func (s *service) RemoveImage(ctx context.Context, id uuid.UUID, url string) (*ProductDTO, error) {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product.AdditionalImages = product.AdditionalImages.Without(url)
	return s.saveImages(ctx, product)
}

func (s *service) SetMainImage(ctx context.Context, id uuid.UUID, url string) (*ProductDTO, error) {
	if strings.TrimSpace(url) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image url is required")
	}
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product.ImageURL = &url
	return s.saveImages(ctx, product)
}

func (s *service) saveImages(ctx context.Context, product *models.Product) (*ProductDTO, error) {
	if err := s.repo.SaveProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product images")
	}
	return s.withRating(ctx, product)
}

func (s *service) Rating(ctx context.Context, productID uuid.UUID) (*RatingSummary, error) {
	if _, err := s.loadProduct(ctx, productID); err != nil {
		return nil, err
	}
	summary, err := s.repo.RatingSummary(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rating")
	}
	return &summary, nil
}

func (s *service) ensureUserAndProduct(ctx context.Context, userID, productID uuid.UUID) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return nil
}

func (s *service) Like(ctx context.Context, userID, productID uuid.UUID) (*types.MessageResponse, error) {
	if err := s.ensureUserAndProduct(ctx, userID, productID); err != nil {
		return nil, err
	}
	created, err := s.repo.Like(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "like product")
	}
	if !created {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Product already liked")
	}
	return &types.MessageResponse{Message: MessageProductLiked}, nil
}

func (s *service) Unlike(ctx context.Context, userID, productID uuid.UUID) (*types.MessageResponse, error) {
	if err := s.ensureUserAndProduct(ctx, userID, productID); err != nil {
		return nil, err
	}
	removed, err := s.repo.Unlike(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unlike product")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Product not liked")
	}
	return &types.MessageResponse{Message: MessageProductUnliked}, nil
}

func (s *service) ListLiked(ctx context.Context, userID uuid.UUID) ([]ProductDTO, error) {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	rows, err := s.repo.ListLiked(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list liked products")
	}
	return s.enrich(ctx, rows)
}
