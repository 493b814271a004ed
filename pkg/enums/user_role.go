package enums

import "slices"

// UserRole is the coarse role stored on the user and carried in access tokens.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

var validUserRoles = []UserRole{UserRoleUser, UserRoleAdmin}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	return slices.Contains(validUserRoles, r)
}

func ParseUserRole(value string) (UserRole, error) {
	return parse(value, validUserRoles, "user role")
}
