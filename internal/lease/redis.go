package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

const keyPrefix = "media:lease:"

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica using the same Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed locker. A non-positive ttl uses DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: client,
		ttl:    ttl,
	}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key, owner string) error {
	k := keyPrefix + key

	ok, err := r.client.SetNX(ctx, k, owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis acquire lease %s: %w", key, err)
	}
	if ok {
		return nil
	}

	holder, err := r.client.Get(ctx, k).Result()
	if err != nil {
		if err == redis.Nil {
			// Expired between SETNX and GET; try once more.
			return r.acquireOnce(ctx, k, key, owner)
		}
		return fmt.Errorf("redis read lease %s: %w", key, err)
	}
	if holder != owner {
		return apperrors.Conflict(fmt.Sprintf("%s is leased by %s", key, holder))
	}
	if err := r.client.Expire(ctx, k, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis renew lease %s: %w", key, err)
	}
	return nil
}

func (r *Redis) acquireOnce(ctx context.Context, k, key, owner string) error {
	ok, err := r.client.SetNX(ctx, k, owner, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis acquire lease %s: %w", key, err)
	}
	if !ok {
		return apperrors.Conflict(fmt.Sprintf("%s is leased by another draft", key))
	}
	return nil
}

// Release implements Locker.
func (r *Redis) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release lease %s: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
