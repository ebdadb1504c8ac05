// Package ratelimit implements fixed-window request limiting on the shared
// volatile store. Windows are discrete: a burst straddling a window boundary
// can admit up to twice the limit, which is the documented characteristic of
// fixed-window limiting, not a defect.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cinbrain/shortlinks/internal/cache"
	"github.com/cinbrain/shortlinks/internal/httpx"
)

const rateKeyPrefix = "rate:"

// Limiter counts requests per key within fixed windows.
// The first request in a window creates the counter with the window's TTL;
// the TTL expiring is what resets the count.
type Limiter struct {
	store  cache.Store
	logger *slog.Logger
}

// NewLimiter creates a Limiter on the shared cache handle.
func NewLimiter(store cache.Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, logger: logger}
}

// CheckAndIncrement records a request for key and reports whether it is
// allowed along with the remaining budget in the current window.
// Fails open: an unreachable store admits every request.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int) {
	rateKey := rateKeyPrefix + key

	current, err := l.store.Get(ctx, rateKey)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			// First request in this window.
			if setErr := l.store.Set(ctx, rateKey, "1", window); setErr != nil {
				l.logger.Debug("rate limit failed open", "key", key, "error", setErr)
				return true, limit
			}
			return true, limit - 1
		}
		l.logger.Debug("rate limit failed open", "key", key, "error", err)
		return true, limit
	}

	count, err := strconv.Atoi(current)
	if err != nil {
		l.logger.Warn("corrupt rate counter, resetting", "key", key, "value", current)
		_ = l.store.Delete(ctx, rateKey)
		return true, limit
	}

	if count >= limit {
		return false, 0
	}

	if _, err := l.store.Incr(ctx, rateKey); err != nil {
		l.logger.Debug("rate limit failed open", "key", key, "error", err)
		return true, limit - count
	}
	return true, limit - count - 1
}

// Middleware limits requests per client IP. Denied requests receive 429 with
// rate-limit headers; allowed responses carry the remaining budget.
func Middleware(limiter *Limiter, limit int, window time.Duration) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining := limiter.CheckAndIncrement(r.Context(), clientIP(r), limit, window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited",
					"Too many requests. Please slow down.", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller's address, preferring the forwarded header a
// fronting proxy sets.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the client.
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
