package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type principalKey struct{}

// Principal is the caller identity Auth derives from the access token.
type Principal struct {
	UserID   string
	Email    string
	Role     enums.UserRole
	Verified bool
	AccessID string
}

// PrincipalFromContext returns the zero Principal for anonymous requests.
func PrincipalFromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string { return PrincipalFromContext(ctx).UserID }

func RoleFromContext(ctx context.Context) string { return string(PrincipalFromContext(ctx).Role) }

func EmailFromContext(ctx context.Context) string { return PrincipalFromContext(ctx).Email }

// AccessIDFromContext returns the jti of the presented access token.
func AccessIDFromContext(ctx context.Context) string { return PrincipalFromContext(ctx).AccessID }

// UserUUIDFromContext parses the authenticated user id.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func WithUserID(ctx context.Context, userID string) context.Context {
	p := PrincipalFromContext(ctx)
	p.UserID = userID
	return withPrincipal(ctx, p)
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	p := PrincipalFromContext(ctx)
	p.Role = role
	return withPrincipal(ctx, p)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	p := PrincipalFromContext(ctx)
	p.AccessID = accessID
	return withPrincipal(ctx, p)
}
