package auth

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// Register creates an unverified user and queues the verification email in
// the same transaction.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	code, err := s.newCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification code")
	}
	expires := s.now().UTC().Add(s.codeTTL)

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "Email is already registered")
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := repo.Create(ctx, users.CreateUserDTO{
			Email:               email,
			PasswordHash:        passwordHash,
			FirstName:           firstName,
			LastName:            lastName,
			Phone:               req.Phone,
			Role:                enums.UserRoleUser,
			VerifyCode:          &code,
			VerifyCodeExpiresAt: &expires,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "ux_users_email") {
				return pkgerrors.New(pkgerrors.CodeConflict, "Email is already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = user
		return s.outbox.Emit(ctx, tx, emailEvent(user, payloads.EmailTemplateVerify, code, expires))
	})
	if err != nil {
		return nil, err
	}

	return &RegisterResponse{Message: MessageRegistered, User: users.FromModel(created)}, nil
}

func emailEvent(user *models.User, template payloads.EmailTemplate, code string, expires time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventEmailRequested,
		AggregateType: enums.AggregateUser,
		AggregateID:   user.ID,
		Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
		Data: payloads.EmailRequestedEvent{
			UserID:    user.ID,
			To:        user.Email,
			FirstName: user.FirstName,
			Template:  template,
			Code:      code,
			ExpiresAt: expires,
		},
	}
}

func (s *service) findByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	return user, nil
}

// checkCode compares a submitted code against the pending one.
func (s *service) checkCode(user *models.User, code string) error {
	if user.VerifyCode == nil || !strings.EqualFold(strings.TrimSpace(code), *user.VerifyCode) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid verification code")
	}
	if user.VerifyCodeExpiresAt == nil || s.now().UTC().After(*user.VerifyCodeExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Verification code has expired")
	}
	return nil
}

func (s *service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (*types.MessageResponse, error) {
	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is already verified")
	}
	if err := s.checkCode(user, req.Code); err != nil {
		return nil, err
	}
	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark verified")
	}
	return &types.MessageResponse{Message: MessageEmailVerified}, nil
}

// ResetPassword issues a fresh code and queues the reset email.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*types.MessageResponse, error) {
	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	code, err := s.newCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset code")
	}
	expires := s.now().UTC().Add(s.codeTTL)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).SetVerifyCode(ctx, user.ID, code, expires); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store reset code")
		}
		return s.outbox.Emit(ctx, tx, emailEvent(user, payloads.EmailTemplatePasswordReset, code, expires))
	})
	if err != nil {
		return nil, err
	}
	return &types.MessageResponse{Message: MessageResetCodeSent}, nil
}

func (s *service) UpdatePassword(ctx context.Context, req UpdatePasswordRequest) (*types.MessageResponse, error) {
	if err := validatePassword(req.NewPassword); err != nil {
		return nil, err
	}
	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.checkCode(user, req.Code); err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(req.NewPassword, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	return &types.MessageResponse{Message: MessagePasswordUpdated}, nil
}
