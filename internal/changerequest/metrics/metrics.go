package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the change request registry.
// Tracks operation outcomes, store conflicts, seeding and breaker state.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	StoreConflicts    prometheus.Counter
	StoreFailures     *prometheus.CounterVec
	Seeds             prometheus.Counter
	BreakerOpen       prometheus.Gauge
	RegistrySize      prometheus.Gauge
}

// New creates a Metrics instance registered with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers all registry metrics with reg. Tests pass a
// fresh prometheus.NewRegistry() so instances do not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crboard_registry_operations_total",
			Help: "Registry operations by operation and outcome",
		}, []string{"op", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crboard_registry_operation_duration_seconds",
			Help:    "Duration of registry operations including store round trips",
			Buckets: durationBuckets,
		}, []string{"op"}),
		StoreConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "crboard_store_conflicts_total",
			Help: "Saves rejected because the document changed since it was loaded",
		}),
		StoreFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crboard_store_failures_total",
			Help: "Store calls that failed by call and reason",
		}, []string{"call", "reason"}),
		Seeds: factory.NewCounter(prometheus.CounterOpts{
			Name: "crboard_store_seeds_total",
			Help: "Times the bootstrap document was written to an empty store",
		}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crboard_store_breaker_open",
			Help: "1 while the store circuit breaker is open",
		}),
		RegistrySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crboard_registry_crs",
			Help: "Number of CRs in the registry after the last successful load",
		}),
	}
}

// ObserveOperation records the outcome and duration of a registry operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// IncrementConflicts records a rejected compare-and-swap save.
func (m *Metrics) IncrementConflicts() {
	m.StoreConflicts.Inc()
}

// IncrementStoreFailure records a failed store call.
func (m *Metrics) IncrementStoreFailure(call, reason string) {
	m.StoreFailures.WithLabelValues(call, reason).Inc()
}

// IncrementSeeds records a bootstrap write.
func (m *Metrics) IncrementSeeds() {
	m.Seeds.Inc()
}

// SetBreakerOpen reflects the breaker state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// SetRegistrySize records the current CR count.
func (m *Metrics) SetRegistrySize(n int) {
	m.RegistrySize.Set(float64(n))
}
