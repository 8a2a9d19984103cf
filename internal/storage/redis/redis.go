package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to redis and waits up to maxWait for it to answer PING.
func NewClient(ctx context.Context, addr, password string, db int, maxWait time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	if err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, backoff.WithContext(b, ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

const blacklistPrefix = "blacklist:"

// Blacklist caches blacklisted refresh token ids until the token would have expired anyway.
type Blacklist struct {
	client *redis.Client
}

func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

// Add records jti as blacklisted for ttl. Non-positive ttl is a no-op since the token is already expired.
func (b *Blacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistPrefix+jti, 1, ttl).Err()
}

func (b *Blacklist) Contains(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, blacklistPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const rateLimitPrefix = "ratelimit:"

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow counts one hit for key and reports whether it is within the limit for
// the current window. The counter is created together with its expiry in one
// MULTI, so a key never outlives its window.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := rateLimitPrefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.limit), nil
}
