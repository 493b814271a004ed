package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type historyReader interface {
	History(ctx context.Context, userID uuid.UUID) ([]orders.HistoryEntry, error)
}

// Service exposes profile reads and edits.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*UserDTO, error)
	List(ctx context.Context, page pagination.Page) (*UserListDTO, error)
}

type service struct {
	repo    *Repository
	history historyReader
}

func NewService(repo *Repository, history historyReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if history == nil {
		return nil, fmt.Errorf("order history reader required")
	}
	return &service{repo: repo, history: history}, nil
}

func userNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, userNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	history, err := s.history.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileDTO{UserDTO: *FromModel(user), Orders: history}, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*UserDTO, error) {
	updates := map[string]any{}
	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "firstName cannot be empty")
		}
		updates["first_name"] = name
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "lastName cannot be empty")
		}
		updates["last_name"] = name
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*input.AvatarURL)
	}
	if input.Phone != nil {
		updates["phone"] = strings.TrimSpace(*input.Phone)
	}

	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if db.IsNotFound(err) {
			return nil, userNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if err := s.repo.UpdateProfile(ctx, userID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, page pagination.Page) (*UserListDTO, error) {
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &UserListDTO{Users: out, Total: total, Pages: pagination.Pages(total, page.Limit)}, nil
}
