package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/cache"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/util"
	"go.uber.org/zap"
)

// RedisRateLimit is a fixed-window limiter shared by every instance through
// Redis. Without a store it falls back to the in-process RateLimiter.
func RedisRateLimit(store cache.Store, config RateLimitConfig) gin.HandlerFunc {
	if store == nil {
		return RateLimit(config)
	}

	return func(c *gin.Context) {
		id := config.key(c)
		window := time.Now().Unix() / int64(config.Window.Seconds())
		key := fmt.Sprintf("rate_limit:%s:%s:%d", config.Name, id, window)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := store.IncrWindow(ctx, key, config.Window)
		if err != nil {
			// Failing open would leave the API unprotected while Redis is down.
			logger.Log.Error("Rate limit check failed, rejecting request",
				zap.String("limiter", config.Name),
				zap.String("key", id),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			return
		}

		remaining := int64(config.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(config.Limit) {
			retry := int(config.Window.Seconds()) - int(time.Now().Unix()%int64(config.Window.Seconds()))
			metrics.Get().RateLimitExceededTotal.WithLabelValues(config.Name, c.Request.Method).Inc()
			logger.Log.Warn("Rate limit exceeded",
				zap.String("limiter", config.Name),
				zap.String("key", id),
				zap.Int64("count", count),
			)
			c.Header("Retry-After", strconv.Itoa(retry))
			util.RespondWithAPIError(c, errors.RateLimited(fmt.Sprintf("rate limit exceeded, retry in %ds", retry)))
			return
		}

		c.Next()
	}
}
