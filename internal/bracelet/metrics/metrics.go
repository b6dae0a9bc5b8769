package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ScansRouted    *prometheus.CounterVec
	Claims         prometheus.Counter
	ClaimConflicts prometheus.Counter
	Transitions    *prometheus.CounterVec
	RouteDuration  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ScansRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardtag_scans_routed_total",
			Help: "Total scans routed, by resulting view",
		}, []string{"view"}),
		Claims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardtag_claims_total",
			Help: "Total successful bracelet claims",
		}),
		ClaimConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardtag_claim_conflicts_total",
			Help: "Total claims lost to a concurrent racer",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardtag_status_transitions_total",
			Help: "Total status transitions, by target status",
		}, []string{"to"}),
		RouteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "guardtag_scan_route_duration_seconds",
			Help:    "Duration of scan routing (validator + decision table)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementScanRouted(view string) {
	m.ScansRouted.WithLabelValues(view).Inc()
}

func (m *Metrics) IncrementClaim() {
	m.Claims.Inc()
}

func (m *Metrics) IncrementClaimConflict() {
	m.ClaimConflicts.Inc()
}

func (m *Metrics) IncrementTransition(to string) {
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveRoute(start time.Time) {
	m.RouteDuration.Observe(time.Since(start).Seconds())
}
