package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveOperation("create", "ok", time.Now())
	m.ObserveOperation("create", "ok", time.Now())
	m.ObserveOperation("create", "validation_error", time.Now())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "validation_error")))

	m.IncrementConflicts()
	m.IncrementSeeds()
	m.IncrementStoreFailure("get", "timeout")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Seeds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("get", "timeout")))

	m.SetBreakerOpen(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerOpen))
	m.SetBreakerOpen(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerOpen))

	m.SetRegistrySize(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RegistrySize))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
