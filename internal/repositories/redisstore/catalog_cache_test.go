package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/techbantu/GharSe-sub003/internal/domain"
)

type fakeCacheClient struct {
	values  map[string]string
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	deleted []string
}

func newFakeCacheClient() *fakeCacheClient {
	return &fakeCacheClient{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCacheClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeCacheClient) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCacheClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.values, key)
		f.deleted = append(f.deleted, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type countingCatalog struct {
	items []domain.CatalogItem
	err   error
	calls int
}

func (c *countingCatalog) ListAvailableItems(context.Context) ([]domain.CatalogItem, error) {
	c.calls++
	return c.items, c.err
}

func menu() []domain.CatalogItem {
	return []domain.CatalogItem{
		{ID: "y9", Name: "Butter Chicken", Price: 299, Category: "Main", IsAvailable: true},
		{ID: "k1", Name: "Kulfi", Price: 79, Category: "Desserts", IsAvailable: true},
	}
}

func TestCachedCatalogServesFromCacheAfterMiss(t *testing.T) {
	client := newFakeCacheClient()
	origin := &countingCatalog{items: menu()}
	cache, err := NewCachedCatalog(CachedCatalogDeps{Origin: origin, Client: client, TTL: time.Minute})
	require.NoError(t, err)

	first, err := cache.ListAvailableItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, menu(), first)
	require.Equal(t, time.Minute, client.ttls[CatalogCacheKey])

	second, err := cache.ListAvailableItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, menu(), second)
	require.Equal(t, 1, origin.calls)

	require.NoError(t, cache.Invalidate(context.Background()))
	require.Equal(t, []string{CatalogCacheKey}, client.deleted)
	_, err = cache.ListAvailableItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, origin.calls)
}

func TestCachedCatalogFallsThroughOnCacheFailures(t *testing.T) {
	var events []string
	client := newFakeCacheClient()
	client.getErr = errors.New("connection refused")
	client.setErr = errors.New("connection refused")
	origin := &countingCatalog{items: menu()}
	cache, err := NewCachedCatalog(CachedCatalogDeps{
		Origin: origin,
		Client: client,
		Logger: func(_ context.Context, event string, _ map[string]any) { events = append(events, event) },
	})
	require.NoError(t, err)

	items, err := cache.ListAvailableItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, menu(), items)
	require.Equal(t, []string{catalogCacheEventReadFailed, catalogCacheEventWriteFailed}, events)
}

func TestCachedCatalogIgnoresCorruptEntries(t *testing.T) {
	client := newFakeCacheClient()
	client.values[CatalogCacheKey] = "{not-json"
	origin := &countingCatalog{items: menu()}
	cache, err := NewCachedCatalog(CachedCatalogDeps{Origin: origin, Client: client})
	require.NoError(t, err)

	items, err := cache.ListAvailableItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, menu(), items)
	require.Equal(t, 1, origin.calls)
}

func TestCachedCatalogPropagatesOriginErrors(t *testing.T) {
	origin := &countingCatalog{err: errors.New("firestore unavailable")}
	cache, err := NewCachedCatalog(CachedCatalogDeps{Origin: origin, Client: newFakeCacheClient()})
	require.NoError(t, err)

	_, err = cache.ListAvailableItems(context.Background())
	require.EqualError(t, err, "firestore unavailable")
}

func TestNewCachedCatalogValidatesDeps(t *testing.T) {
	_, err := NewCachedCatalog(CachedCatalogDeps{Client: newFakeCacheClient()})
	require.Error(t, err)
	_, err = NewCachedCatalog(CachedCatalogDeps{Origin: &countingCatalog{}})
	require.Error(t, err)
}
