package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/response"
)

// Counter increments a windowed counter and returns its new value.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter is a fixed-window Counter shared by every server instance.
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter creates a RedisCounter.
func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Incr implements Counter. The window starts with the first hit.
func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// RateLimiter caps requests per client IP within a fixed window.
type RateLimiter struct {
	counter Counter
	rate    int           // Requests per window
	window  time.Duration // Window length
	keyFn   func(ip string) string
	log     zerolog.Logger
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(counter Counter, rate int, window time.Duration, keyFn func(ip string) string, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		rate:    rate,
		window:  window,
		keyFn:   keyFn,
		log:     log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
// Requests pass when the counter store is unavailable.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		n, err := rl.counter.Incr(c.Request.Context(), rl.keyFn(c.ClientIP()), rl.window)
		if err != nil {
			rl.log.Warn().Err(err).Msg("Rate limit counter unavailable")
			c.Next()
			return
		}

		if n > int64(rl.rate) {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		c.Next()
	}
}
