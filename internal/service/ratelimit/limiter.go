package ratelimit

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	xhttp "ModelArena/pkg/http"
)

// Limiter holds one token bucket per key. Buckets idle for longer than ttl
// are dropped on the next sweep.
type Limiter struct {
	mu      sync.Mutex
	m       map[string]*entry
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	lastGC  time.Time
	nowFunc func() time.Time
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// New creates a keyed limiter allowing perMinute events per key with the
// given burst.
func New(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		m:       make(map[string]*entry),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		ttl:     10 * time.Minute,
		nowFunc: time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.nowFunc()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.ttl {
		for k, e := range l.m {
			if now.Sub(e.seen) > l.ttl {
				delete(l.m, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429. keyFn picks the
// bucket; the client IP is used when it returns "".
func (l *Limiter) Middleware(keyFn func(c echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := ""
			if keyFn != nil {
				key = keyFn(c)
			}
			if key == "" {
				key = c.RealIP()
			}
			if !l.Allow(key) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests, slow down"))
			}
			return next(c)
		}
	}
}
