package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// reviewRow is a review joined with its author's public fields.
type reviewRow struct {
	models.Review
	AuthorFirstName *string
	AuthorLastName  *string
	AuthorAvatarURL *string
}

const reviewColumns = "reviews.*, users.first_name AS author_first_name, users.last_name AS author_last_name, users.avatar_url AS author_avatar_url"

// Repository persists reviews.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a reviews repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) withAuthor(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("reviews").
		Select(reviewColumns).
		Joins("LEFT JOIN users ON users.id = reviews.user_id")
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *Repository) Save(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Save(review).Error
}

// FindByID loads the bare review; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// FindWithAuthor loads the review and its author; nil, nil when absent.
func (r *Repository) FindWithAuthor(ctx context.Context, id uuid.UUID) (*reviewRow, error) {
	var rows []reviewRow
	if err := r.withAuthor(ctx).Where("reviews.id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Exists reports whether the user already reviewed the product.
func (r *Repository) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActiveByProduct returns active reviews, newest first.
func (r *Repository) ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]reviewRow, error) {
	var rows []reviewRow
	err := r.withAuthor(ctx).
		Where("reviews.product_id = ? AND reviews.is_active = ?", productID, true).
		Order("reviews.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByUser returns every review the user wrote, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]reviewRow, error) {
	var rows []reviewRow
	err := r.withAuthor(ctx).
		Where("reviews.user_id = ?", userID).
		Order("reviews.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Review{})
	return res.RowsAffected > 0, res.Error
}
