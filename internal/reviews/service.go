package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const MessageReviewDeleted = "Review deleted successfully"

type productLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	RatingSummary(ctx context.Context, productID uuid.UUID) (catalog.RatingSummary, error)
}

type userChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service exposes review operations.
type Service interface {
	Create(ctx context.Context, userID, productID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]ReviewDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ReviewDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, input UpdateReviewInput) (*ReviewDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID, isAdmin bool) (*types.MessageResponse, error)
	Rating(ctx context.Context, productID uuid.UUID) (*catalog.RatingSummary, error)
}

type service struct {
	repo     *Repository
	products productLookup
	users    userChecker
}

// NewService builds the review service.
func NewService(repo *Repository, products productLookup, users userChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if users == nil {
		return nil, fmt.Errorf("user checker required")
	}
	return &service{repo: repo, products: products, users: users}, nil
}

func reviewNotFound(id uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "Review with ID %s not found", id)
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	return nil
}

func (s *service) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "Product with ID %s not found", productID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return nil
}

func (s *service) Create(ctx context.Context, userID, productID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error) {
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment is required")
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !exists {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "User with ID %s not found", userID)
	}

	duplicate, err := s.repo.Exists(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing review")
	}
	if duplicate {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "You have already reviewed this product")
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    input.Rating,
		Comment:   comment,
		Images:    dbtypes.StringList(append([]string{}, input.Images...)),
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "You have already reviewed this product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
	}
	return s.Get(ctx, review.ID)
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error) {
	rows, err := s.repo.ListActiveByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	return fromRows(rows), nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]ReviewDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	return fromRows(rows), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ReviewDTO, error) {
	row, err := s.repo.FindWithAuthor(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
	}
	if row == nil {
		return nil, reviewNotFound(id)
	}
	dto := fromRow(*row)
	return &dto, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, reviewNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
	}
	return review, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input UpdateReviewInput) (*ReviewDTO, error) {
	review, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You can only update your own reviews")
	}
	if input.Rating != nil {
		if err := validateRating(*input.Rating); err != nil {
			return nil, err
		}
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		comment := strings.TrimSpace(*input.Comment)
		if comment == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment is required")
		}
		review.Comment = comment
	}
	if input.Images != nil {
		review.Images = dbtypes.StringList(append([]string{}, input.Images...))
	}
	if err := s.repo.Save(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update review")
	}
	return s.Get(ctx, review.ID)
}

// Delete removes a review owned by userID, or any review when isAdmin is set.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID, isAdmin bool) (*types.MessageResponse, error) {
	review, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID && !isAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You can only delete your own reviews")
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete review")
	}
	return &types.MessageResponse{Message: MessageReviewDeleted}, nil
}

func (s *service) Rating(ctx context.Context, productID uuid.UUID) (*catalog.RatingSummary, error) {
	summary, err := s.products.RatingSummary(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rating")
	}
	return &summary, nil
}
