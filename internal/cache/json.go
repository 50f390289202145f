package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"go.uber.org/zap"
)

// VideoKey is the cache key of an anonymous video detail response.
func VideoKey(videoID string) string {
	return "video:" + videoID
}

// GetJSON decodes the cached value at key into dst. It reports false on a
// miss, on a nil store and on any Redis or decode error, so callers simply
// fall through to the database.
func GetJSON(ctx context.Context, store Store, name, key string, dst interface{}) bool {
	if store == nil {
		return false
	}
	b, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logger.Log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.Get().CacheMissesTotal.WithLabelValues(name).Inc()
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Log.Warn("Cache entry undecodable", zap.String("key", key), zap.Error(err))
		metrics.Get().CacheMissesTotal.WithLabelValues(name).Inc()
		return false
	}
	metrics.Get().CacheHitsTotal.WithLabelValues(name).Inc()
	return true
}

// SetJSON stores v at key. Failures are logged and otherwise ignored.
func SetJSON(ctx context.Context, store Store, key string, v interface{}, ttl time.Duration) {
	if store == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.Log.Warn("Cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := store.SetEx(ctx, key, b, ttl); err != nil {
		logger.Log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate deletes keys, logging failures.
func Invalidate(ctx context.Context, store Store, keys ...string) {
	if store == nil {
		return
	}
	if err := store.Del(ctx, keys...); err != nil {
		logger.Log.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
