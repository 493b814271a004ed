package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers rendered emails.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Render builds the email for a requested template.
func Render(event payloads.EmailRequestedEvent) (Email, error) {
	to := strings.TrimSpace(event.To)
	if to == "" {
		return Email{}, fmt.Errorf("recipient required")
	}
	name := strings.TrimSpace(event.FirstName)
	if name == "" {
		name = "there"
	}
	expires := event.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")

	switch event.Template {
	case payloads.EmailTemplateVerify:
		return Email{
			To:      to,
			Subject: "Verify your email",
			Body: fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires at %s.\n",
				name, event.Code, expires),
		}, nil
	case payloads.EmailTemplatePasswordReset:
		return Email{
			To:      to,
			Subject: "Reset your password",
			Body: fmt.Sprintf("Hi %s,\n\nUse code %s to set a new password. It expires at %s.\nIf you did not ask for this, ignore this email.\n",
				name, event.Code, expires),
		}, nil
	default:
		return Email{}, fmt.Errorf("unknown email template %q", event.Template)
	}
}

// LogSender writes emails to the structured log instead of an SMTP relay.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{logg: logg}, nil
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"to":      email.To,
		"subject": email.Subject,
		"body":    email.Body,
	}), "mailer.sent")
	return nil
}
