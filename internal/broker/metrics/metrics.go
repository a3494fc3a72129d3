package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for broker runs.
type Metrics struct {
	// Referents by terminal result ("complete", "no_services", "bad_item", "aborted")
	Referents *prometheus.CounterVec

	// Services selected per referent after resolution
	ResolvedServices prometheus.Histogram

	// Wall clock per tier
	TierDuration *prometheus.HistogramVec

	// Tiers cut off by their deadline
	TierTimeouts *prometheus.CounterVec

	// Messages written to client streams by kind
	Messages *prometheus.CounterVec

	// Broker runs in flight
	InFlight prometheus.Gauge
}

// New creates a Metrics instance with all broker metrics registered.
func New() *Metrics {
	return &Metrics{
		Referents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citebroker_broker_referents_total",
			Help: "Referents processed by terminal result",
		}, []string{"result"}),

		ResolvedServices: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "citebroker_broker_resolved_services",
			Help:    "Number of services selected for a referent",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}),

		TierDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "citebroker_broker_tier_duration_seconds",
			Help:    "Time for a tier to settle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"tier"}),

		TierTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citebroker_broker_tier_timeouts_total",
			Help: "Tiers that hit their deadline",
		}, []string{"tier"}),

		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "citebroker_broker_messages_total",
			Help: "Messages streamed to clients by kind",
		}, []string{"kind"}),

		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "citebroker_broker_in_flight",
			Help: "Broker runs currently in progress",
		}),
	}
}

func (m *Metrics) IncrementReferent(result string) {
	if m != nil {
		m.Referents.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveResolved(n int) {
	if m != nil {
		m.ResolvedServices.Observe(float64(n))
	}
}

func (m *Metrics) ObserveTier(tier string, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.TierDuration.WithLabelValues(tier).Observe(d.Seconds())
	if timedOut {
		m.TierTimeouts.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) IncrementMessage(kind string) {
	if m != nil {
		m.Messages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementInFlight() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) DecrementInFlight() {
	if m != nil {
		m.InFlight.Dec()
	}
}
