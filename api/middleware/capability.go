package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Capability names an administrative permission.
type Capability string

const (
	CapCatalogWrite    Capability = "catalog:write"
	CapReviewsModerate Capability = "reviews:moderate"
	CapOrdersManage    Capability = "orders:manage"
	CapUsersRead       Capability = "users:read"
	CapUploadsProduct  Capability = "uploads:product"
	CapAnalyticsRead   Capability = "analytics:read"
)

var roleCapabilities = map[enums.UserRole][]Capability{
	enums.UserRoleAdmin: {
		CapCatalogWrite,
		CapReviewsModerate,
		CapOrdersManage,
		CapUsersRead,
		CapUploadsProduct,
		CapAnalyticsRead,
	},
	enums.UserRoleUser: nil,
}

// HasCapability reports whether role grants capability.
func HasCapability(role enums.UserRole, capability Capability) bool {
	for _, granted := range roleCapabilities[role] {
		if granted == capability {
			return true
		}
	}
	return false
}

// RequireCapability rejects callers whose role lacks capability. It must run
// after Auth.
func RequireCapability(capability Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.UserRole(RoleFromContext(r.Context()))
			if !HasCapability(role, capability) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "Insufficient permissions").
					WithDetails(map[string]any{"capability": string(capability)}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
