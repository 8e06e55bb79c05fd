package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tabernacle-io/congregate/internal/auth/cache"
	"github.com/tabernacle-io/congregate/pkg/slogx"
)

// LoginLimiter throttles password logins per email and source address.
// The counter lives in the cache with a fixed window TTL: the first
// failed attempt starts the window, later failures extend nothing, and
// a success clears the key outright.
//
// When the cache is unreachable the limiter fails open. Blocking every
// login because redis restarted is worse than briefly losing throttling.
type LoginLimiter struct {
	Cache       cache.Cache
	MaxAttempts int64
	Window      time.Duration
}

func (l *LoginLimiter) key(email, ip string) string {
	return "login_attempts:" + strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

// Check reports whether the pair is currently locked out. It never
// increments; callers gate before touching credentials so a locked-out
// attacker learns nothing about password validity.
func (l *LoginLimiter) Check(ctx context.Context, email, ip string) error {
	key := l.key(email, ip)

	count, err := l.Cache.Count(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			slogx.FromContext(ctx).Warn("login limiter unavailable, failing open", slog.Any("error", err))
			return nil
		}
		return err
	}
	if count < l.MaxAttempts {
		return nil
	}

	retryAfter := int64(l.Window / time.Second)
	if ttl, err := l.Cache.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = int64((ttl + time.Second - 1) / time.Second)
	}
	return &RateLimitedError{RetryAfter: retryAfter}
}

// Hit records a failed attempt.
func (l *LoginLimiter) Hit(ctx context.Context, email, ip string) {
	if _, err := l.Cache.Increment(ctx, l.key(email, ip), l.Window); err != nil {
		slogx.FromContext(ctx).Warn("login limiter hit not recorded", slog.Any("error", err))
	}
}

// Clear resets the counter after a successful login.
func (l *LoginLimiter) Clear(ctx context.Context, email, ip string) {
	if err := l.Cache.Delete(ctx, l.key(email, ip)); err != nil {
		slogx.FromContext(ctx).Warn("login limiter clear failed", slog.Any("error", err))
	}
}
