package middleware

import (
	"net/http"
	"strconv"

	"github.com/ndidit/notifyhub/internal/httpjson"
	"github.com/ndidit/notifyhub/internal/ratelimit"
)

// RateLimit enforces the KV-backed rolling window, fail-open on KV errors
// per spec.md §4.1. The window itself decides allow/deny; this layer only
// derives the key and sets the standard rate-limit headers.
func RateLimit(window *ratelimit.Window) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := RateLimitKey(r)

			allowed, retryAfter, err := window.Allow(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httpjson.Failed(w, http.StatusTooManyRequests, "RateLimitExceeded", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
