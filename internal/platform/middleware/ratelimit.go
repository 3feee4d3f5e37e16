package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/namaste/namaste/internal/platform/cache"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops a client's limiter after this long without traffic.
	IdleTTL time.Duration
	// Clock drives idle expiry. Nil means the system clock.
	Clock cache.Clock
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		IdleTTL:           10 * time.Minute,
	}
}

// rateLimiter holds one token bucket per client IP. Idle buckets are swept
// at most once per IdleTTL, on the request path.
type rateLimiter struct {
	cfg      RateLimitConfig
	limiters *cache.TTL[string, *rate.Limiter]
	limit    string

	mu        sync.Mutex
	lastSweep time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = cache.SystemClock
	}
	return &rateLimiter{
		cfg:       cfg,
		limiters:  cache.NewTTL[string, *rate.Limiter](cfg.IdleTTL, cfg.Clock),
		limit:     strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64),
		lastSweep: cfg.Clock(),
	}
}

func (rl *rateLimiter) sweep() {
	now := rl.cfg.Clock()
	rl.mu.Lock()
	due := now.Sub(rl.lastSweep) >= rl.cfg.IdleTTL
	if due {
		rl.lastSweep = now
	}
	rl.mu.Unlock()
	if due {
		rl.limiters.Purge()
	}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	lim, ok := rl.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)
	}
	// Refresh so active clients keep their bucket.
	rl.limiters.Set(key, lim)
	return lim
}

func (rl *rateLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rl.sweep()
		lim := rl.limiter(c.RealIP())

		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", rl.limit)

		r := lim.Reserve()
		if !r.OK() || r.Delay() > 0 {
			delay := r.Delay()
			r.Cancel()
			retry := int(delay/time.Second) + 1
			h.Set("Retry-After", strconv.Itoa(retry))
			h.Set("X-RateLimit-Remaining", "0")
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

// RateLimit enforces a token bucket per remote IP. It runs ahead of bearer
// authentication, so authenticated callers share their IP's bucket.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return newRateLimiter(cfg).middleware
}
