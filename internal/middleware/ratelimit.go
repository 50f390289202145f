package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/errors"
	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/util"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Name labels the limiter in metrics and Redis keys.
	Name string
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the bucket for a request. Defaults to the client IP.
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig applies to the whole API.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "default", Limit: 100, Window: time.Minute}
}

// AuthRateLimitConfig is stricter, for login, register and password reset.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "auth", Limit: 10, Window: time.Minute}
}

// UploadRateLimitConfig limits video and image uploads.
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "upload", Limit: 20, Window: time.Minute}
}

// ViewRateLimitConfig bounds view logging per client.
func ViewRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "views", Limit: 60, Window: time.Minute}
}

func (cfg RateLimitConfig) key(c *gin.Context) string {
	if cfg.KeyFunc != nil {
		return cfg.KeyFunc(c)
	}
	return c.ClientIP()
}

// UserOrIPKey buckets authenticated callers by user id and everyone else by IP.
func UserOrIPKey(c *gin.Context) string {
	if id := util.OptionalUserID(c); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter keeps one token bucket per key. Buckets refill continuously at
// Limit per Window and hold at most Limit tokens.
type RateLimiter struct {
	config   RateLimitConfig
	limit    rate.Limit
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter creates a limiter and starts its idle-bucket cleanup.
// Call Stop when the limiter is discarded.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		limit:    rate.Limit(float64(config.Limit) / config.Window.Seconds()),
		limiters: make(map[string]*limiterEntry),
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop(config.Window * 10)
	return rl
}

func (rl *RateLimiter) entry(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.config.Limit)}
		rl.limiters[key] = e
	}
	e.lastAccess = time.Now()
	return e.limiter
}

// Allow consumes a token for key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.entry(key).Allow()
}

// retryAfter is the number of whole seconds until key has a token again.
func (rl *RateLimiter) retryAfter(key string) int {
	lim := rl.entry(key)
	r := lim.Reserve()
	if !r.OK() {
		return int(rl.config.Window.Seconds())
	}
	delay := r.Delay()
	r.Cancel()
	return int(math.Ceil(delay.Seconds()))
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.config.key(c)
		if rl.Allow(key) {
			c.Next()
			return
		}

		retry := rl.retryAfter(key)
		if retry < 1 {
			retry = 1
		}
		metrics.Get().RateLimitExceededTotal.WithLabelValues(rl.config.Name, c.Request.Method).Inc()
		c.Header("Retry-After", strconv.Itoa(retry))
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		c.Header("X-RateLimit-Remaining", "0")
		util.RespondWithAPIError(c, errors.RateLimited(fmt.Sprintf("rate limit exceeded, retry in %ds", retry)))
	}
}

func (rl *RateLimiter) cleanupLoop(idle time.Duration) {
	if idle < time.Minute {
		idle = time.Minute
	}
	ticker := time.NewTicker(idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(idle)
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	threshold := time.Now().Add(-idle)
	for key, e := range rl.limiters {
		if e.lastAccess.Before(threshold) {
			delete(rl.limiters, key)
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// RateLimit is NewRateLimiter(config).Middleware() for limiters that live as
// long as the process.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	return NewRateLimiter(config).Middleware()
}
