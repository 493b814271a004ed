package auth

import (
	"github.com/angelmondragon/storefront-backend/internal/users"
)

const (
	MessageRegistered      = "User created, check your email for the verification code"
	MessageLoggedIn        = "Logged in successfully"
	MessageEmailVerified   = "Email verified successfully"
	MessageResetCodeSent   = "Password reset code sent"
	MessagePasswordUpdated = "Password updated successfully"
	MessageLoggedOut       = "Logged out successfully"

	minPasswordLength = 6
)

// RegisterRequest contains the payload required to create an account.
type RegisterRequest struct {
	FirstName string  `json:"firstName" validate:"required,max=50"`
	LastName  string  `json:"lastName" validate:"required,max=50"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	Phone     *string `json:"phone,omitempty"`
}

// RegisterResponse echoes the created account.
type RegisterResponse struct {
	Message string         `json:"message"`
	User    *users.UserDTO `json:"user"`
}

// VerifyEmailRequest confirms ownership of an email address.
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the tokens and user produced by a successful login.
type LoginResponse struct {
	Message      string         `json:"message"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         *users.UserDTO `json:"user"`
}

// RefreshRequest exchanges a refresh token for a new token pair. The access
// token may already be expired.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenPair is the rotated credentials returned by refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ResetPasswordRequest asks for a password reset code.
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdatePasswordRequest sets a new password using a reset code.
type UpdatePasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}
