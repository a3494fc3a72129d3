package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for outbound service calls.
type Metrics struct {
	// Call outcomes by service and status ("success" or "<severity>:<code>")
	Calls *prometheus.CounterVec

	// Wall clock per invocation, all attempts included
	CallLatency *prometheus.HistogramVec

	// Attempts beyond the first
	Retries *prometheus.CounterVec

	// Result cache lookups by service and result ("hit", "miss", "error")
	CacheLookups *prometheus.CounterVec
}

// New creates a Metrics instance with all service metrics registered.
func New() *Metrics {
	return &Metrics{
		Calls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citebroker_service_calls_total",
			Help: "Total service invocations by service and outcome status",
		}, []string{"service", "status"}),

		CallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citebroker_service_call_duration_seconds",
			Help:    "Duration of service invocations including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),

		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citebroker_service_retries_total",
			Help: "Total retried attempts by service",
		}, []string{"service"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citebroker_service_cache_lookups_total",
			Help: "Result cache lookups by service and result",
		}, []string{"service", "result"}),
	}
}

// ObserveCall records one finished invocation.
func (m *Metrics) ObserveCall(service, status string, attempts int, d time.Duration) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(service, status).Inc()
	m.CallLatency.WithLabelValues(service).Observe(d.Seconds())
	if attempts > 1 {
		m.Retries.WithLabelValues(service).Add(float64(attempts - 1))
	}
}

// IncrementCacheLookup records a result cache lookup.
func (m *Metrics) IncrementCacheLookup(service, result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(service, result).Inc()
	}
}
