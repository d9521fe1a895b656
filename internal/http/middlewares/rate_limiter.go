package middlewares

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/identityhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// CounterStore counts hits per key in a fixed window. Incr returns the count
// after this hit and the time left until the window resets.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RateLimitMetrics interface {
	ObserveRateLimited(route string)
}

type noopRateLimitMetrics struct{}

func (noopRateLimitMetrics) ObserveRateLimited(string) {}

type RateLimiter struct {
	store   CounterStore
	limit   int
	window  time.Duration
	metrics RateLimitMetrics
	log     *slog.Logger
}

func NewRateLimiter(store CounterStore, limit int, window time.Duration, metrics RateLimitMetrics, log *slog.Logger) *RateLimiter {
	if metrics == nil {
		metrics = noopRateLimitMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{
		store:   store,
		limit:   limit,
		window:  window,
		metrics: metrics,
		log:     log,
	}
}

// RateLimiterMiddleware enforces the limit for a derived key. A counter store
// failure lets the request through.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = "ip:" + clientIP(c)
		}

		count, resetIn, err := rl.store.Incr(c.Request.Context(), "ratelimit:"+key, rl.window)
		if err != nil {
			rl.log.WarnContext(c.Request.Context(), "rate limit counter unavailable", "err", err)
			c.Next()
			return
		}

		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			retryAfter := int(math.Ceil(resetIn.Seconds()))
			if retryAfter < 0 {
				retryAfter = 0
			}

			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			rl.metrics.ObserveRateLimited(route)

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			handlers.RespondError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// helper functions

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return "ip:" + clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return KeyByIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP only for trusted proxies.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}

// MemoryCounter is a process-local CounterStore.
type MemoryCounter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	now     func() time.Time
	sweepAt time.Time
}

type clientBucket struct {
	count     int64
	windowEnd time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now, window)

	b, ok := m.clients[key]
	if !ok || !now.Before(b.windowEnd) {
		b = &clientBucket{windowEnd: now.Add(window)}
		m.clients[key] = b
	}
	b.count++

	return b.count, b.windowEnd.Sub(now), nil
}

// sweep drops expired buckets at most once per window so idle clients do not
// accumulate.
func (m *MemoryCounter) sweep(now time.Time, window time.Duration) {
	if now.Before(m.sweepAt) {
		return
	}
	for k, b := range m.clients {
		if !now.Before(b.windowEnd) {
			delete(m.clients, k)
		}
	}
	m.sweepAt = now.Add(window)
}
