package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Email    string
	Role     enums.UserRole
	IsVerify bool
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients. The user id
// travels in the registered "sub" claim.
type AccessTokenClaims struct {
	Email    string         `json:"email"`
	Role     enums.UserRole `json:"role"`
	IsVerify bool           `json:"isVerify"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c AccessTokenClaims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	return id, nil
}
