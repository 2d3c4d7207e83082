package retry

import (
	"testing"
	"time"
)

func TestDelayMonotonicAndCapped(t *testing.T) {
	p := Policy{Base: time.Second, ExponentialBase: 2, MaxDelay: 10 * time.Second, MaxRetries: 5}
	var prev time.Duration
	for attempt := 0; attempt <= 6; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Fatalf("attempt %d: delay %v less than previous %v", attempt, d, prev)
		}
		if d > p.MaxDelay {
			t.Fatalf("attempt %d: delay %v exceeds max %v", attempt, d, p.MaxDelay)
		}
		prev = d
	}
}

func TestDelayValues(t *testing.T) {
	p := Policy{Base: time.Second, ExponentialBase: 2, MaxDelay: 10 * time.Second, MaxRetries: 5}
	cases := map[int]time.Duration{
		0: time.Second,
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
		4: 10 * time.Second,
	}
	for attempt, want := range cases {
		if got := p.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestExhausted(t *testing.T) {
	p := Policy{MaxRetries: 3}
	if p.Exhausted(2) {
		t.Fatal("expected not exhausted at retryCount=2")
	}
	if !p.Exhausted(3) {
		t.Fatal("expected exhausted at retryCount=3")
	}
}
