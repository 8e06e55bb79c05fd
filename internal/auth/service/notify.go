package service

import (
	"context"
	"log/slog"

	"github.com/tabernacle-io/congregate/internal/auth/domain"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// Notifier delivers user-facing security and lifecycle messages. The mail
// transport lives behind this interface; the service only decides when a
// message is due.
type Notifier interface {
	VerificationEmail(ctx context.Context, user domain.User, token string)
	PasswordResetEmail(ctx context.Context, user domain.User, token string)
	NewDeviceLogin(ctx context.Context, user domain.User, ip, userAgent string)
}

// LogNotifier writes notifications to the log. It stands in for a mail
// backend in development and tests.
type LogNotifier struct{}

func (LogNotifier) VerificationEmail(ctx context.Context, user domain.User, token string) {
	slogx.FromContext(ctx).Info("verification email queued",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
}

func (LogNotifier) PasswordResetEmail(ctx context.Context, user domain.User, token string) {
	slogx.FromContext(ctx).Info("password reset email queued",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
}

func (LogNotifier) NewDeviceLogin(ctx context.Context, user domain.User, ip, userAgent string) {
	slogx.FromContext(ctx).Info("new device notification queued",
		slog.String("user_id", user.ID),
		slog.String("ip", ip),
	)
}
