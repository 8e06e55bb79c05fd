package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrDuplicateEmail        = errors.New("email_already_registered")
	ErrSocialEmailRequired   = errors.New("social_email_required")
	ErrProviderAlreadyLinked = errors.New("provider_already_linked")
	ErrSocialLogin           = errors.New("social_login_failed")
	ErrCurrentSession        = errors.New("cannot_revoke_current_session")
	ErrSelfAction            = errors.New("cannot_perform_on_self")
	ErrNotDeleted            = errors.New("user_not_deleted")
	ErrPasswordReused        = errors.New("password_recently_used")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidResetToken     = errors.New("invalid_reset_token")
)

// RateLimitedError tells the caller how long to back off before the
// next login attempt is accepted.
type RateLimitedError struct {
	RetryAfter int64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too_many_attempts: retry in %d seconds", e.RetryAfter)
}
