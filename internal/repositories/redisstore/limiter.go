package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] bucket key; ARGV: refill rate per second, capacity, cost, now (seconds), ttl seconds.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])
if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, ttl)
return allowed
`)

// TokenBucketLimiter enforces a per-key request rate shared across API instances.
type TokenBucketLimiter struct {
	client    redis.Scripter
	prefix    string
	perMinute int
	burst     int
	now       func() time.Time
}

func NewTokenBucketLimiter(client redis.Scripter, prefix string, perMinute int) (*TokenBucketLimiter, error) {
	if client == nil {
		return nil, errors.New("token bucket limiter: redis client is required")
	}
	if perMinute <= 0 {
		return nil, errors.New("token bucket limiter: rate must be positive")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &TokenBucketLimiter{
		client:    client,
		prefix:    prefix,
		perMinute: perMinute,
		burst:     perMinute,
		now:       time.Now,
	}, nil
}

// Allow consumes one token for key. Callers decide how to treat a Redis failure.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	rate := float64(l.perMinute) / 60.0
	now := float64(l.now().UnixMicro()) / 1e6

	allowed, err := tokenBucketScript.Run(ctx, l.client,
		[]string{fmt.Sprintf("%s:%s", l.prefix, key)},
		rate, l.burst, 1, now, 120,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("token bucket limiter: %w", err)
	}
	return allowed == 1, nil
}
