// Package limiter throttles repeated attempts against the credential
// endpoints with fixed-window counters kept in redis.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("limiter redis unavailable")
)

type Config struct {
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

func NewRedisLimiter(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one attempt for scope and key and fails with
// ErrRateLimited once the window's budget is spent.
func (l *RedisLimiter) Enforce(ctx context.Context, scope, key string) error {
	k := l.config.Prefix + ":" + scope + ":" + key

	// INCR and EXPIRE NX run in one MULTI so a counter never outlives
	// its window, even one left behind without a ttl.
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.config.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if incr.Val() > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// RetryAfter reports how long until the window for scope and key resets.
func (l *RedisLimiter) RetryAfter(ctx context.Context, scope, key string) time.Duration {
	ttl, err := l.redis.TTL(ctx, l.config.Prefix+":"+scope+":"+key).Result()
	if err != nil || ttl < 0 {
		return l.config.Window
	}
	return ttl
}
