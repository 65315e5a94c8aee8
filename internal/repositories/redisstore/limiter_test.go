package redisstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiterIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	limiter, err := NewTokenBucketLimiter(client, fmt.Sprintf("test-%d", time.Now().UnixNano()), 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, allowed, "request %d should be allowed", i+1)
	}
	allowed, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, allowed, "buckets are per key")
}

func TestNewTokenBucketLimiterValidates(t *testing.T) {
	_, err := NewTokenBucketLimiter(nil, "", 10)
	require.Error(t, err)
	_, err = NewTokenBucketLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "", 0)
	require.Error(t, err)
}
