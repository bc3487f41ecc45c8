package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront-service/internal/util"
)

// Cache is the read-through cache used by the services. A nil Cache disables
// caching.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	categoryCountsKey = "products:by-category"
	orderStatsKey     = "orders:statistics"
)

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// cacheGet reports a hit only when the value decoded cleanly. Cache failures
// are logged and treated as a miss.
func cacheGet(ctx context.Context, c Cache, logger *zap.Logger, name, key string, dest interface{}) bool {
	if c == nil {
		return false
	}

	found, err := c.GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		util.CacheRequestsTotal.WithLabelValues(name, "error").Inc()
		logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	case found:
		util.CacheRequestsTotal.WithLabelValues(name, "hit").Inc()
		return true
	default:
		util.CacheRequestsTotal.WithLabelValues(name, "miss").Inc()
		return false
	}
}

func cacheSet(ctx context.Context, c Cache, logger *zap.Logger, key string, value interface{}) {
	if c == nil {
		return
	}
	if err := c.SetJSON(ctx, key, value); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func cacheDelete(ctx context.Context, c Cache, logger *zap.Logger, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		logger.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
