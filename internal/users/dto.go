package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID              uuid.UUID               `json:"id"`
	Email           string                  `json:"email"`
	FirstName       string                  `json:"firstName"`
	LastName        string                  `json:"lastName"`
	Phone           *string                 `json:"phone,omitempty"`
	AvatarURL       *string                 `json:"avatarUrl,omitempty"`
	Role            enums.UserRole          `json:"role"`
	IsVerified      bool                    `json:"isVerify"`
	LastLoginAt     *time.Time              `json:"lastLoginAt,omitempty"`
	DefaultDelivery *models.DeliveryDetails `json:"defaultDelivery,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// ProfileDTO is the user plus their derived order history.
type ProfileDTO struct {
	UserDTO
	Orders []orders.HistoryEntry `json:"orders"`
}

// UserListDTO is one page of users.
type UserListDTO struct {
	Users []UserDTO `json:"users"`
	Total int64     `json:"total"`
	Pages int       `json:"pages"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email               string
	PasswordHash        string
	FirstName           string
	LastName            string
	Phone               *string
	Role                enums.UserRole
	VerifyCode          *string
	VerifyCodeExpiresAt *time.Time
}

// UpdateProfileInput carries the optional fields a user may change.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	AvatarURL *string
	Phone     *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           u.Phone,
		AvatarURL:       u.AvatarURL,
		Role:            u.Role,
		IsVerified:      u.IsVerified,
		LastLoginAt:     u.LastLoginAt,
		DefaultDelivery: u.DefaultDelivery,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleUser
	}

	var expires *time.Time
	if c.VerifyCodeExpiresAt != nil {
		utc := c.VerifyCodeExpiresAt.UTC()
		expires = &utc
	}

	return &models.User{
		Email:               c.Email,
		PasswordHash:        c.PasswordHash,
		FirstName:           c.FirstName,
		LastName:            c.LastName,
		Phone:               c.Phone,
		Role:                role,
		VerifyCode:          c.VerifyCode,
		VerifyCodeExpiresAt: expires,
	}
}
