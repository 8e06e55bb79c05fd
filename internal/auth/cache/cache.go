// Package cache provides the ephemeral TTL key-value store backing the login
// rate limiter and the known-device sets. The cache is best-effort: losing it
// resets attempt counters and device memory without compromising
// correctness, only defense-in-depth.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the backing store could not be reached.
// Callers decide whether to fail open.
var ErrUnavailable = errors.New("cache: unavailable")

// Cache is the injected ephemeral store. The redis driver serves production;
// the in-memory driver serves tests and cacheless deployments.
type Cache interface {
	// Increment atomically bumps the counter at key and returns the new
	// value. The TTL is applied when the counter is created, so the whole
	// window expires together. This is the primitive that keeps concurrent
	// failed logins from both reading count=4 and both writing 5.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Count returns the current counter value, 0 when absent.
	Count(ctx context.Context, key string) (int64, error)

	// TTL returns the remaining lifetime of key, 0 when absent or without
	// expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// AddSetMember adds member to the set at key and refreshes the set's
	// TTL. The record expires as a whole relative to its last write, so a
	// device set goes stale together rather than per fingerprint.
	AddSetMember(ctx context.Context, key, member string, ttl time.Duration) error

	// HasSetMember reports set membership; false when the set is absent.
	HasSetMember(ctx context.Context, key, member string) (bool, error)
}
