package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Service exposes per-user cart operations.
type Service interface {
	Add(ctx context.Context, userID, productID uuid.UUID, qty int) (*types.MessageResponse, error)
	Update(ctx context.Context, userID, productID uuid.UUID, qty int) (*types.MessageResponse, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*types.MessageResponse, error)
	Clear(ctx context.Context, userID uuid.UUID) (*types.MessageResponse, error)
	Get(ctx context.Context, userID uuid.UUID) ([]LineDTO, error)
}

type service struct {
	repo     Repository
	products productLoader
	users    userChecker
	now      func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, products productLoader, users userChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user checker required")
	}
	return &service{
		repo:     repo,
		products: products,
		users:    users,
		now:      time.Now,
	}, nil
}

func validateQuantity(qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return nil
}

func (s *service) ensureUser(ctx context.Context, userID uuid.UUID) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !exists {
		return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	return nil
}

// Add increments the row for productID or inserts one stamped with the current time.
func (s *service) Add(ctx context.Context, userID, productID uuid.UUID, qty int) (*types.MessageResponse, error) {
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	now := s.now().UTC()
	matched, err := s.repo.Increment(ctx, userID, productID, qty, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	if !matched {
		item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty, AddedAt: now}
		if err := s.repo.Insert(ctx, item); err != nil {
			if !db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert cart item")
			}
			// a concurrent add inserted the row first
			if _, err := s.repo.Increment(ctx, userID, productID, qty, now); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
			}
		}
	}
	return &types.MessageResponse{Message: MessageItemAdded}, nil
}

func (s *service) Update(ctx context.Context, userID, productID uuid.UUID, qty int) (*types.MessageResponse, error) {
	if err := validateQuantity(qty); err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	matched, err := s.repo.SetQuantity(ctx, userID, productID, qty, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	if !matched {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found in cart")
	}
	return &types.MessageResponse{Message: MessageItemUpdated}, nil
}

// Remove succeeds whether or not the product was in the cart.
func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) (*types.MessageResponse, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	return &types.MessageResponse{Message: MessageItemRemoved}, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*types.MessageResponse, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.repo.DeleteAll(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return &types.MessageResponse{Message: MessageCartCleared}, nil
}

// Get returns the cart lines whose products still resolve.
func (s *service) Get(ctx context.Context, userID uuid.UUID) ([]LineDTO, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart products")
	}

	lines := make([]LineDTO, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, LineDTO{
			ID:       item.ID,
			Product:  summaryFromProduct(product),
			Quantity: item.Quantity,
			AddedAt:  item.AddedAt,
		})
	}
	return lines, nil
}
