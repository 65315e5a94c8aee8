package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether the caller identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const limiterIdleTTL = 10 * time.Minute

// MemoryRateLimiter keeps one token bucket per key inside the process.
type MemoryRateLimiter struct {
	limit rate.Limit
	burst int
	clock func() time.Time

	mu        sync.Mutex
	buckets   map[string]*memoryBucket
	lastPrune time.Time
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateLimiter allows perMinute requests per key with an equal burst. It returns nil
// when perMinute is not positive, which disables limiting.
func NewMemoryRateLimiter(perMinute int, clock func() time.Time) *MemoryRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		clock:   clock,
		buckets: make(map[string]*memoryBucket),
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &memoryBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now
	l.pruneLocked(now)
	return bucket.limiter.AllowN(now, 1), nil
}

func (l *MemoryRateLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < limiterIdleTTL {
		return
	}
	l.lastPrune = now
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) > limiterIdleTTL {
			delete(l.buckets, key)
		}
	}
}

// fallbackRateLimiter consults primary and switches to secondary while primary errors,
// so a Redis outage degrades to per-instance limits instead of no limits.
type fallbackRateLimiter struct {
	primary   RateLimiter
	secondary RateLimiter
	onError   func(context.Context, error)
}

// NewFallbackRateLimiter chains a shared limiter with a local one.
func NewFallbackRateLimiter(primary, secondary RateLimiter, onError func(context.Context, error)) RateLimiter {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}
	return &fallbackRateLimiter{primary: primary, secondary: secondary, onError: onError}
}

func (l *fallbackRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := l.primary.Allow(ctx, key)
	if err == nil {
		return allowed, nil
	}
	if l.onError != nil {
		l.onError(ctx, err)
	}
	return l.secondary.Allow(ctx, key)
}
