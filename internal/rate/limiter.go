package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// Prefix namespaces the counter keys, e.g. "sa:rl:".
	Prefix string
	// MaxAttempts is the number of hits allowed per key per window.
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces fixed-window attempt budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("rate: redis client required")
	}
	if cfg.MaxAttempts <= 0 || cfg.Window <= 0 {
		return nil, errors.New("rate: MaxAttempts and Window must be > 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl:"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}, nil
}

// Allow records one hit for scope+key and returns ErrRateLimited once the
// budget for the current window is spent.
func (l *Limiter) Allow(ctx context.Context, scope, key string) error {
	count, err := l.incrementWithTTL(ctx, l.key(scope, key), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Attempts returns the hit count for scope+key in the current window.
func (l *Limiter) Attempts(ctx context.Context, scope, key string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(scope, key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter for scope+key.
func (l *Limiter) Reset(ctx context.Context, scope, key string) error {
	if err := l.redis.Del(ctx, l.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RetryAfter returns the time left in the current window for scope+key.
func (l *Limiter) RetryAfter(ctx context.Context, scope, key string) time.Duration {
	ttl, err := l.redis.PTTL(ctx, l.key(scope, key)).Result()
	if err != nil || ttl < 0 {
		return l.config.Window
	}
	return ttl
}

func (l *Limiter) key(scope, key string) string {
	return l.config.Prefix + scope + ":" + key
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
