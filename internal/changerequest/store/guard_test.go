package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crboard/internal/changerequest/metrics"
	"crboard/pkg/platform/circuit"
	"crboard/pkg/platform/sentinel"
)

// scriptedBackend returns err from every call, or blocks until the context
// ends when block is set.
type scriptedBackend struct {
	err   error
	block bool
	calls int
}

func (b *scriptedBackend) Get(ctx context.Context) ([]byte, int64, error) {
	b.calls++
	if b.block {
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	if b.err != nil {
		return nil, 0, b.err
	}
	return []byte(`{"systems":{}}`), 1, nil
}

func (b *scriptedBackend) Put(ctx context.Context, _ []byte, _ int64) (int64, error) {
	b.calls++
	if b.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return 2, b.err
}

func TestGuarded_PassesThroughHealthyAnswers(t *testing.T) {
	for _, err := range []error{nil, sentinel.ErrNotFound, sentinel.ErrConflict} {
		inner := &scriptedBackend{err: err}
		g := NewGuarded(inner)
		_, _, got := g.Get(context.Background())
		assert.Equal(t, err, got)
		assert.False(t, g.breaker.IsOpen())
	}
}

func TestGuarded_TimeoutIsUnavailable(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	g := NewGuarded(&scriptedBackend{block: true}, WithTimeout(10*time.Millisecond), WithGuardMetrics(m))

	_, err := g.Put(context.Background(), []byte(`{}`), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("put", "timeout")))
}

func TestGuarded_BreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	breaker := circuit.New("test",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Second),
		circuit.WithClock(func() time.Time { return now }),
	)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	inner := &scriptedBackend{err: errors.New("connection refused")}
	g := NewGuarded(inner, WithBreaker(breaker), WithGuardMetrics(m))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := g.Get(ctx)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerOpen))

	// refused without touching the backend
	_, _, err := g.Get(ctx)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, 2, inner.calls)

	// probe after cooldown succeeds and closes the breaker
	now = now.Add(2 * time.Second)
	inner.err = nil
	_, version, err := g.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerOpen))
}

func TestGuarded_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	breaker := circuit.New("test", circuit.WithFailureThreshold(1))
	g := NewGuarded(&scriptedBackend{block: true}, WithBreaker(breaker), WithTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.Get(ctx)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.False(t, breaker.IsOpen())
}

func TestGuarded_OverMemoryBackendKeepsContract(t *testing.T) {
	runBackendContract(t, func(*testing.T) Backend { return NewGuarded(NewMemory()) })
}
