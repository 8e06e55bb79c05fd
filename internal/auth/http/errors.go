package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tabernacle-io/congregate/internal/auth/service"
	"github.com/tabernacle-io/congregate/internal/auth/social"
	"github.com/tabernacle-io/congregate/internal/auth/store"
	"github.com/tabernacle-io/congregate/pkg/httpx"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// writeServiceError maps service errors onto the response envelope. The
// mapping lives in one place so every handler speaks the same dialect.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var limited *service.RateLimitedError
	switch {
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", limited.RetryAfter))
		httpx.Error(w, http.StatusUnprocessableEntity, "too many login attempts", map[string]any{
			"retry_after": limited.RetryAfter,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, service.ErrDuplicateEmail):
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", map[string]string{
			"email": "is already registered",
		})
	case errors.Is(err, service.ErrSocialEmailRequired):
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", map[string]string{
			"email": "was not shared by the provider",
		})
	case errors.Is(err, service.ErrProviderAlreadyLinked):
		httpx.Error(w, http.StatusConflict, "account already linked to another identity", nil)
	case errors.Is(err, social.ErrUnknownProvider):
		httpx.Error(w, http.StatusUnprocessableEntity, "validation failed", map[string]string{
			"provider": "is not supported",
		})
	case errors.Is(err, service.ErrSocialLogin):
		httpx.Error(w, http.StatusUnauthorized, "social login failed", nil)
	case errors.Is(err, service.ErrCurrentSession):
		httpx.Error(w, http.StatusBadRequest, "cannot revoke the current session", nil)
	case errors.Is(err, service.ErrSelfAction):
		httpx.Error(w, http.StatusForbidden, "cannot perform this action on your own account", nil)
	case errors.Is(err, service.ErrForbidden):
		httpx.Error(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, service.ErrNotDeleted):
		httpx.Error(w, http.StatusBadRequest, "user is not deleted", nil)
	case errors.Is(err, service.ErrPasswordReused):
		httpx.Error(w, http.StatusBadRequest, "new password must differ from the current password", nil)
	case errors.Is(err, service.ErrInvalidResetToken):
		httpx.Error(w, http.StatusUnprocessableEntity, "token is invalid or expired", nil)
	case errors.Is(err, store.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "not found", nil)
	default:
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "internal error", nil)
	}
}
