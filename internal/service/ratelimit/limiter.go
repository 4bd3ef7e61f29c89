package ratelimit

import (
	"sync"
	"time"

	xhttp "SignalCast/pkg/http"

	"github.com/labstack/echo/v4"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a keyed token bucket.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*bucket
	now   func() time.Time
	swept time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket), now: time.Now} }

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	// refill
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Sweep drops buckets untouched for longer than idle.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.m {
		if b.last.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// sweepEvery runs Sweep(idle) at most once per idle period.
func (l *Limiter) sweepEvery(idle time.Duration) {
	now := l.now()
	l.mu.Lock()
	if l.swept.IsZero() {
		l.swept = now
	}
	due := now.Sub(l.swept) >= idle
	if due {
		l.swept = now
	}
	l.mu.Unlock()
	if due {
		l.Sweep(idle)
	}
}

// refillTime is how long an empty bucket takes to fill up again. A bucket
// idle for longer is indistinguishable from a new one.
func refillTime(capacity, refillPerSec float64) time.Duration {
	if refillPerSec <= 0 {
		return time.Hour
	}
	return max(time.Minute, time.Duration(capacity/refillPerSec*float64(time.Second)))
}

// KeyFunc picks the bucket for a request.
type KeyFunc func(c echo.Context) string

// ByRealIP buckets requests per client address.
func ByRealIP(c echo.Context) string { return c.RealIP() }

// Middleware rejects requests once the caller's bucket is empty. A zero
// capacity disables limiting.
func Middleware(l *Limiter, capacity, refillPerSec float64, key KeyFunc) echo.MiddlewareFunc {
	if key == nil {
		key = ByRealIP
	}
	idle := refillTime(capacity, refillPerSec)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if capacity <= 0 {
				return next(c)
			}
			l.sweepEvery(idle)
			if l.Allow(key(c), capacity, refillPerSec) {
				return next(c)
			}
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
	}
}
