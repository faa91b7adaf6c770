package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig tunes the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig suits the archive's notification pattern: a burst
// of instance notifications when a study lands is normal, a sustained flood
// is not.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// bucket is one client's token supply. Tokens refill continuously at the
// configured rate up to the burst ceiling.
type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
}

func newBucket(cfg RateLimitConfig) *bucket {
	return &bucket{
		tokens: float64(cfg.BurstSize),
		burst:  float64(cfg.BurstSize),
		rate:   cfg.RequestsPerSecond,
		last:   time.Now(),
	}
}

// take credits the bucket for elapsed time and spends one token if one is
// available.
func (b *bucket) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens = math.Min(b.burst, b.tokens+now.Sub(b.last).Seconds()*b.rate)
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// secondsUntilToken estimates how long a rejected client should wait before
// retrying. Always at least one second.
func (b *bucket) secondsUntilToken() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rate <= 0 {
		return 1
	}
	return int((1-b.tokens)/b.rate) + 1
}

// limiter maps client IPs to their buckets.
type limiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	clients map[string]*bucket
}

func (l *limiter) bucketFor(ip string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.clients[ip]
	if !ok {
		b = newBucket(l.cfg)
		l.clients[ip] = b
	}
	return b
}

// RateLimit rejects clients that exceed cfg with a 429 and a Retry-After
// hint. Buckets are keyed by client IP so each notification source gets its
// own allowance.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	l := &limiter{cfg: cfg, clients: make(map[string]*bucket)}
	limitValue := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b := l.bucketFor(c.RealIP())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitValue)

			if !b.take() {
				h.Set("Retry-After", strconv.Itoa(b.secondsUntilToken()))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
