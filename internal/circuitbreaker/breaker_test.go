package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestTransitionsClosedToOpenToHalfOpenToClosed(t *testing.T) {
	b := New(Config{Name: "test", Threshold: 2, RecoveryTimeout: 20 * time.Millisecond}, nil)
	ctx := context.Background()
	failing := func(ctx context.Context) (any, error) { return nil, errors.New("boom") }

	for i := 0; i < 2; i++ {
		if _, err := b.Execute(ctx, failing); err == nil {
			t.Fatal("expected failure")
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after threshold failures, got %v", b.State())
	}

	if _, err := b.Execute(ctx, failing); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected breaker open to reject immediately with ErrOpenState, got %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	succeeding := func(ctx context.Context) (any, error) { return "ok", nil }
	if _, err := b.Execute(ctx, succeeding); err != nil {
		t.Fatalf("expected trial call admitted in half-open, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after half-open success, got %v", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{Name: "test2", Threshold: 1, RecoveryTimeout: 10 * time.Millisecond}, nil)
	ctx := context.Background()
	failing := func(ctx context.Context) (any, error) { return nil, errors.New("boom") }

	b.Execute(ctx, failing)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	time.Sleep(15 * time.Millisecond)
	b.Execute(ctx, failing)
	if b.State() != StateOpen {
		t.Fatalf("expected re-opened after half-open failure, got %v", b.State())
	}
}
