// Package ratelimit provides two distinct throttles: a KV-backed rolling
// window counter in front of ingress, and a per-channel token bucket pacing
// outbound provider sends.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// ChannelLimiters paces steady-state outbound sends per channel, layered
// outside the circuit breaker: the limiter smooths load, the breaker
// isolates failures.
type ChannelLimiters struct {
	limiters map[string]*rate.Limiter
}

// NewChannelLimiters builds one token bucket per channel, burst equal to
// the per-second rate.
func NewChannelLimiters(rates map[string]float64) *ChannelLimiters {
	limiters := make(map[string]*rate.Limiter, len(rates))
	for channel, r := range rates {
		limiters[channel] = rate.NewLimiter(rate.Limit(r), int(r))
	}
	return &ChannelLimiters{limiters: limiters}
}

// Wait blocks until the channel's bucket admits one send, or ctx expires.
func (c *ChannelLimiters) Wait(ctx context.Context, channel string) error {
	l, ok := c.limiters[channel]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

// Window is the rolling-window rate limiter fronting ingress, backed by the
// KV store's INCR+EXPIRE primitive.
type Window struct {
	incr   func(ctx context.Context, identifier string, window time.Duration) (int64, error)
	ttl    func(ctx context.Context, identifier string) (time.Duration, error)
	period time.Duration
	limit  int64
}

func NewWindow(
	incr func(ctx context.Context, identifier string, window time.Duration) (int64, error),
	ttl func(ctx context.Context, identifier string) (time.Duration, error),
	requestsPerMinute int,
) *Window {
	return &Window{incr: incr, ttl: ttl, period: 60 * time.Second, limit: int64(requestsPerMinute)}
}

// Allow increments identifier's counter and reports whether the request is
// within quota, plus the seconds remaining in the current window for a
// Retry-After header. Fail-open on KV errors: the request is allowed and
// the error is returned for logging.
func (w *Window) Allow(ctx context.Context, identifier string) (allowed bool, retryAfterSeconds int, err error) {
	count, err := w.incr(ctx, identifier, w.period)
	if err != nil {
		return true, 0, err
	}
	if count <= w.limit {
		return true, 0, nil
	}

	remaining := w.period
	if ttl, ttlErr := w.ttl(ctx, identifier); ttlErr == nil && ttl > 0 {
		remaining = ttl
	}
	return false, int(remaining / time.Second), nil
}
