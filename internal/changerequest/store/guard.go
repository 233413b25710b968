package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crboard/internal/changerequest/metrics"
	"crboard/pkg/platform/circuit"
	"crboard/pkg/platform/sentinel"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 5 * time.Second

// Guarded wraps a Backend with a per-call deadline and a circuit breaker.
// Infrastructure failures (including timeouts and calls refused by an open
// breaker) are reported as sentinel.ErrUnavailable. Not-found and conflict
// results are healthy answers and pass through unchanged.
type Guarded struct {
	inner   Backend
	breaker *circuit.Breaker
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// GuardOption configures a Guarded backend.
type GuardOption func(*Guarded)

func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guarded) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) GuardOption {
	return func(g *Guarded) {
		if b != nil {
			g.breaker = b
		}
	}
}

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guarded) {
		g.logger = logger
	}
}

func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guarded) {
		g.metrics = m
	}
}

// NewGuarded wraps inner.
func NewGuarded(inner Backend, opts ...GuardOption) *Guarded {
	g := &Guarded{
		inner:   inner,
		breaker: circuit.New("registry-store"),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) Get(ctx context.Context) ([]byte, int64, error) {
	var (
		doc     []byte
		version int64
	)
	err := g.call(ctx, "get", func(ctx context.Context) error {
		var err error
		doc, version, err = g.inner.Get(ctx)
		return err
	})
	return doc, version, err
}

func (g *Guarded) Put(ctx context.Context, doc []byte, expected int64) (int64, error) {
	var version int64
	err := g.call(ctx, "put", func(ctx context.Context) error {
		var err error
		version, err = g.inner.Put(ctx, doc, expected)
		return err
	})
	return version, err
}

func (g *Guarded) call(ctx context.Context, name string, fn func(context.Context) error) error {
	if !g.breaker.Allow() {
		g.recordFailure(name, "circuit_open")
		return fmt.Errorf("%w: store %s refused, circuit open", sentinel.ErrUnavailable, name)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil || errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "store circuit closed", "breaker", g.breaker.Name())
			g.setBreaker(false)
		}
		return err
	}

	// the caller gave up; not the backend's fault
	if ctx.Err() != nil {
		return fmt.Errorf("%w: store %s: %w", sentinel.ErrUnavailable, name, err)
	}

	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	g.recordFailure(name, reason)
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.ErrorContext(ctx, "store circuit opened", "breaker", g.breaker.Name(), "error", err)
		g.setBreaker(true)
	}
	return fmt.Errorf("%w: store %s: %w", sentinel.ErrUnavailable, name, err)
}

func (g *Guarded) recordFailure(call, reason string) {
	if g.metrics != nil {
		g.metrics.IncrementStoreFailure(call, reason)
	}
}

func (g *Guarded) setBreaker(open bool) {
	if g.metrics != nil {
		g.metrics.SetBreakerOpen(open)
	}
}
