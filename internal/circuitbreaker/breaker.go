// Package circuitbreaker adapts sony/gobreaker into the three-state guard
// each protected dependency (provider transport, user directory) is given:
// closed, open, half_open, per-dependency configured thresholds and
// recovery windows.
package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateOpen     = gobreaker.StateOpen
	StateHalfOpen = gobreaker.StateHalfOpen
)

// Config is the per-provider configuration: consecutive-failure threshold
// before tripping, the timeout applied to every call the breaker admits,
// and the recovery window after which a trial call is admitted.
type Config struct {
	Name            string
	Threshold       uint32
	Timeout         time.Duration
	RecoveryTimeout time.Duration
}

// Breaker wraps one gobreaker.CircuitBreaker guarding a single dependency.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func New(cfg Config, onStateChange func(name string, from, to State)) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Threshold
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onStateChange(name, from, to)
		}
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), timeout: cfg.Timeout}
}

// Execute runs fn under the breaker, bounding it by cfg.Timeout when set.
// When the breaker is open, it returns gobreaker.ErrOpenState without
// invoking fn — callers classify that as a retryable dependency failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return b.cb.Execute(func() (any, error) {
		if b.timeout <= 0 {
			return fn(ctx)
		}
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return fn(callCtx)
	})
}

func (b *Breaker) State() State { return b.cb.State() }

// Registry holds one breaker per provider/dependency name.
type Registry struct {
	breakers map[string]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

func (r *Registry) Register(name string, cfg Config, onStateChange func(name string, from, to State)) *Breaker {
	cfg.Name = name
	b := New(cfg, onStateChange)
	r.breakers[name] = b
	return b
}

func (r *Registry) Get(name string) *Breaker { return r.breakers[name] }
