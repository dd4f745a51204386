package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps presence markers in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to rawURL, which may be a redis:// URL or a bare
// host:port address.
func NewRedisStore(rawURL string) *RedisStore {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		opt = &redis.Options{Addr: rawURL}
	}
	return &RedisStore{client: redis.NewClient(opt)}
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Exists issues GET; redis.Nil means absent.
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	err := r.client.Get(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %w", ErrStoreUnavailable, key, err)
	}
	return true, nil
}

// Set issues SET key 1 EX ttl, the single-command form of SET + EXPIRE.
func (r *RedisStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrStoreUnavailable, key, err)
	}
	return nil
}

// Incr issues INCR and, for a fresh counter, EXPIRE.
func (r *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: incr %s: %w", ErrStoreUnavailable, key, err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, fmt.Errorf("%w: expire %s: %w", ErrStoreUnavailable, key, err)
		}
	}
	return n, nil
}

// Ping checks if Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
