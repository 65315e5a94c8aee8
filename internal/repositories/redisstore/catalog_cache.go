package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/techbantu/GharSe-sub003/internal/domain"
	"github.com/techbantu/GharSe-sub003/internal/repositories"
)

const (
	// CatalogCacheKey holds the JSON snapshot of available menu rows.
	CatalogCacheKey        = "catalog:available:v1"
	defaultCatalogCacheTTL = 30 * time.Second

	catalogCacheEventReadFailed  = "catalog_cache.read_failed"
	catalogCacheEventWriteFailed = "catalog_cache.write_failed"
	catalogCacheEventCorrupt     = "catalog_cache.corrupt_entry"
)

// cacheClient is the subset of go-redis commands the catalog cache needs.
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedCatalog serves catalog snapshots from Redis and falls through to the origin reader on a
// miss or any cache failure. Cache errors never reach the caller.
type CachedCatalog struct {
	origin repositories.CatalogRepository
	client cacheClient
	ttl    time.Duration
	logger func(context.Context, string, map[string]any)
}

var _ repositories.CatalogRepository = (*CachedCatalog)(nil)

type CachedCatalogDeps struct {
	Origin repositories.CatalogRepository
	Client cacheClient
	TTL    time.Duration
	Logger func(context.Context, string, map[string]any)
}

func NewCachedCatalog(deps CachedCatalogDeps) (*CachedCatalog, error) {
	if deps.Origin == nil {
		return nil, errors.New("cached catalog: origin repository is required")
	}
	if deps.Client == nil {
		return nil, errors.New("cached catalog: redis client is required")
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &CachedCatalog{origin: deps.Origin, client: deps.Client, ttl: ttl, logger: logger}, nil
}

func (c *CachedCatalog) ListAvailableItems(ctx context.Context) ([]domain.CatalogItem, error) {
	if items, ok := c.read(ctx); ok {
		return items, nil
	}

	items, err := c.origin.ListAvailableItems(ctx)
	if err != nil {
		return nil, err
	}
	c.write(ctx, items)
	return items, nil
}

// Invalidate drops the cached snapshot so the next read goes to the origin.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, CatalogCacheKey).Err()
}

func (c *CachedCatalog) read(ctx context.Context) ([]domain.CatalogItem, bool) {
	raw, err := c.client.Get(ctx, CatalogCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger(ctx, catalogCacheEventReadFailed, map[string]any{"error": err.Error()})
		}
		return nil, false
	}
	var entries []cachedCatalogItem
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.logger(ctx, catalogCacheEventCorrupt, map[string]any{"error": err.Error()})
		return nil, false
	}
	items := make([]domain.CatalogItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, domain.CatalogItem{
			ID:          entry.ID,
			Name:        entry.Name,
			Price:       entry.Price,
			Category:    entry.Category,
			IsAvailable: entry.IsAvailable,
		})
	}
	return items, true
}

func (c *CachedCatalog) write(ctx context.Context, items []domain.CatalogItem) {
	entries := make([]cachedCatalogItem, 0, len(items))
	for _, item := range items {
		entries = append(entries, cachedCatalogItem(item))
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		c.logger(ctx, catalogCacheEventWriteFailed, map[string]any{"error": err.Error()})
		return
	}
	if err := c.client.Set(ctx, CatalogCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger(ctx, catalogCacheEventWriteFailed, map[string]any{"error": err.Error()})
	}
}

type cachedCatalogItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
	IsAvailable bool    `json:"isAvailable"`
}
