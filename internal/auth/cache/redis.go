package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Cache on a redis client. All operations translate
// connectivity failures into ErrUnavailable so policy code can fail open
// without matching driver errors.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := r.key(key)

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// First write in the window starts the expiry clock.
	if count == 1 {
		if err := r.client.Expire(ctx, k, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count, nil
}

func (r *Redis) Count(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Get(ctx, r.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Redis reports -2 for missing keys and -1 for keys without expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) AddSetMember(ctx context.Context, key, member string, ttl time.Duration) error {
	k := r.key(key)

	if err := r.client.SAdd(ctx, k, member).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := r.client.Expire(ctx, k, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) HasSetMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key(key), member).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}
