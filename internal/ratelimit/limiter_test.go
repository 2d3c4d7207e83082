package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWindowAllowsUnderLimit(t *testing.T) {
	counts := map[string]int64{}
	incr := func(ctx context.Context, id string, d time.Duration) (int64, error) {
		counts[id]++
		return counts[id], nil
	}
	ttl := func(ctx context.Context, id string) (time.Duration, error) { return time.Minute, nil }

	w := NewWindow(incr, ttl, 3)
	for i := 0; i < 3; i++ {
		allowed, _, err := w.Allow(context.Background(), "k")
		if err != nil || !allowed {
			t.Fatalf("expected allowed on request %d, got allowed=%v err=%v", i, allowed, err)
		}
	}
}

func TestWindowDeniesOverLimitWithRetryAfter(t *testing.T) {
	counts := map[string]int64{}
	incr := func(ctx context.Context, id string, d time.Duration) (int64, error) {
		counts[id]++
		return counts[id], nil
	}
	ttl := func(ctx context.Context, id string) (time.Duration, error) { return 30 * time.Second, nil }

	w := NewWindow(incr, ttl, 1)
	w.Allow(context.Background(), "k")
	allowed, retryAfter, err := w.Allow(context.Background(), "k")
	if err != nil || allowed {
		t.Fatalf("expected denied on second request, got allowed=%v err=%v", allowed, err)
	}
	if retryAfter != 30 {
		t.Fatalf("expected retry_after=30, got %d", retryAfter)
	}
}

func TestWindowFailsOpenOnKVError(t *testing.T) {
	incr := func(ctx context.Context, id string, d time.Duration) (int64, error) {
		return 0, context.DeadlineExceeded
	}
	ttl := func(ctx context.Context, id string) (time.Duration, error) { return 0, nil }

	w := NewWindow(incr, ttl, 1)
	allowed, _, err := w.Allow(context.Background(), "k")
	if err == nil || !allowed {
		t.Fatalf("expected fail-open (allowed=true, err!=nil), got allowed=%v err=%v", allowed, err)
	}
}

func TestChannelLimitersWaitReturnsImmediatelyForUnknownChannel(t *testing.T) {
	c := NewChannelLimiters(map[string]float64{"email": 10})
	if err := c.Wait(context.Background(), "unknown"); err != nil {
		t.Fatalf("expected nil error for unconfigured channel, got %v", err)
	}
}
