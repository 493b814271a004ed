package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists categories, products, likes and reads review ratings.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LikePattern lower-cases q and wraps it for a substring LIKE match, escaping
// the wildcard characters of the input.
func LikePattern(q string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}

const likeClause = ` LIKE ? ESCAPE '\'`

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) SaveCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *Repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CategoryNameTaken reports whether another category already uses name.
func (r *Repository) CategoryNameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Category{}).Where("name = ?", name)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListCategories orders by sort_order then name.
func (r *Repository) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	query := r.db.WithContext(ctx).Model(&models.Category{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.Category
	if err := query.Order("sort_order ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteCategory reports whether a row was removed.
func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{})
	return res.RowsAffected > 0, res.Error
}

// SearchCategories matches active categories by name or description.
func (r *Repository) SearchCategories(ctx context.Context, q string, limit int) ([]models.Category, error) {
	pattern := LikePattern(q)
	var rows []models.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("LOWER(name)"+likeClause+" OR LOWER(COALESCE(description, ''))"+likeClause, pattern, pattern).
		Order("sort_order ASC").
		Order("name ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *Repository) SaveProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// FindByID loads a product; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs returns the products that still exist keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// ProductNameTaken reports whether another product already uses name.
func (r *Repository) ProductNameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("name = ?", name)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteProduct reports whether a row was removed.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected > 0, res.Error
}

func applyProductFilter(query *gorm.DB, filter ProductFilter) *gorm.DB {
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := LikePattern(filter.Search)
		query = query.Where(
			"LOWER(name)"+likeClause+" OR LOWER(COALESCE(details, ''))"+likeClause+" OR LOWER(COALESCE(colour, ''))"+likeClause,
			pattern, pattern, pattern,
		)
	}
	if filter.PriceMin != nil {
		query = query.Where("new_price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		query = query.Where("new_price <= ?", *filter.PriceMax)
	}
	return query
}

// ListProducts applies the filter and returns one page plus the total count.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	page := pagination.Page{Page: filter.Page, Limit: filter.Limit}.Normalize()

	var total int64
	if err := applyProductFilter(r.db.WithContext(ctx).Model(&models.Product{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	if err := applyProductFilter(r.db.WithContext(ctx), filter).
		Order(filter.Sort.OrderClause()).
		Order("id").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SearchProducts matches product name, details or colour.
func (r *Repository) SearchProducts(ctx context.Context, q string, limit int) ([]models.Product, error) {
	rows, _, err := r.ListProducts(ctx, ProductFilter{Search: q, Page: 1, Limit: limit})
	return rows, err
}

// Like stores the like. It reports false when the user already liked the product.
func (r *Repository) Like(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	err := r.db.WithContext(ctx).Create(&models.ProductLike{UserID: userID, ProductID: productID}).Error
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Unlike reports whether a like was removed.
func (r *Repository) Unlike(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.ProductLike{})
	return res.RowsAffected > 0, res.Error
}

// ListLiked returns the liked products, most recently liked first.
func (r *Repository) ListLiked(ctx context.Context, userID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Joins("JOIN product_likes ON product_likes.product_id = products.id").
		Where("product_likes.user_id = ?", userID).
		Order("product_likes.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type ratingRow struct {
	ProductID     uuid.UUID
	AverageRating float64
	ReviewCount   int64
}

// RatingSummaries aggregates active reviews per product. Averages are rounded
// to one decimal; products without reviews are absent from the map.
func (r *Repository) RatingSummaries(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]RatingSummary, error) {
	out := make(map[uuid.UUID]RatingSummary, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []ratingRow
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("product_id, AVG(rating) AS average_rating, COUNT(*) AS review_count").
		Where("product_id IN ? AND is_active = ?", productIDs, true).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = RatingSummary{
			AverageRating: roundRating(row.AverageRating),
			ReviewCount:   row.ReviewCount,
		}
	}
	return out, nil
}

// RatingSummary returns the summary for a single product, zero when unrated.
func (r *Repository) RatingSummary(ctx context.Context, productID uuid.UUID) (RatingSummary, error) {
	summaries, err := r.RatingSummaries(ctx, []uuid.UUID{productID})
	if err != nil {
		return RatingSummary{}, err
	}
	return summaries[productID], nil
}

func roundRating(avg float64) float64 {
	return decimal.NewFromFloat(avg).Round(1).InexactFloat64()
}
