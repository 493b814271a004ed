package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Email               string           `gorm:"column:email;type:text;not null;uniqueIndex:ux_users_email"`
	PasswordHash        string           `gorm:"column:password_hash;not null"`
	FirstName           string           `gorm:"column:first_name;not null"`
	LastName            string           `gorm:"column:last_name;not null"`
	Phone               *string          `gorm:"column:phone"`
	AvatarURL           *string          `gorm:"column:avatar_url"`
	Role                enums.UserRole   `gorm:"column:role;type:text;not null"`
	IsVerified          bool             `gorm:"column:is_verified;not null"`
	VerifyCode          *string          `gorm:"column:verify_code"`
	VerifyCodeExpiresAt *time.Time       `gorm:"column:verify_code_expires_at"`
	IsLoggedOut         bool             `gorm:"column:is_logged_out;not null"`
	LastLoginAt         *time.Time       `gorm:"column:last_login_at"`
	DefaultDelivery     *DeliveryDetails `gorm:"column:default_delivery;type:jsonb;serializer:json"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == enums.UserRoleAdmin
}
