package ratelimit

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	xhttp "GapSight/pkg/http"
)

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Every key gets the same rate and burst.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	sweepAt  time.Time
}

// PerMinute allows n requests per key and minute with bursts of up to n.
func PerMinute(n int) *Limiter {
	if n <= 0 {
		n = 1
	}
	return New(rate.Limit(float64(n)/60), n)
}

func New(r rate.Limit, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*keyLimiter),
		rate:     r,
		burst:    max(burst, 1),
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether one request for key may go through now.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Take(key)
	return ok
}

// Take takes one token for key. When none is available it returns false and
// the time until the next token, leaving the bucket untouched.
func (l *Limiter) Take(key string) (bool, time.Duration) {
	now := l.now()
	lim := l.get(key, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Duration(math.MaxInt64)
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	if kl, ok := l.limiters[key]; ok {
		kl.lastSeen = now
		return kl.limiter
	}
	kl := &keyLimiter{limiter: rate.NewLimiter(l.rate, l.burst), lastSeen: now}
	l.limiters[key] = kl
	return kl.limiter
}

// sweep drops limiters that have been idle long enough to be full again.
func (l *Limiter) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	l.sweepAt = now.Add(l.idle)
	for k, kl := range l.limiters {
		if now.Sub(kl.lastSeen) > l.idle {
			delete(l.limiters, k)
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware limits a route per client IP. name separates the buckets of different routes.
func (l *Limiter) Middleware(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, wait := l.Take(name + ":" + c.RealIP())
			if !ok {
				c.Response().Header().Set("Retry-After", retryAfter(wait))
				return xhttp.AppErrorResponse(c, xhttp.RateLimitedError("too many requests, try again later"))
			}
			return next(c)
		}
	}
}

// retryAfter rounds up to whole seconds, at least one and at most a day.
func retryAfter(d time.Duration) string {
	const day = 24 * time.Hour
	if d > day {
		d = day
	}
	secs := int64(math.Ceil(d.Round(time.Millisecond).Seconds()))
	return strconv.FormatInt(max(secs, 1), 10)
}
