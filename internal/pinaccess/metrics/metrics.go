package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PinChecks *prometheus.CounterVec
	Lockouts  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		PinChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardtag_pin_checks_total",
			Help: "Total PIN verifications, by scope and outcome",
		}, []string{"scope", "outcome"}),
		Lockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardtag_pin_lockouts_total",
			Help: "Total attempt-limiter lockouts engaged",
		}),
	}
}

func (m *Metrics) IncrementPinCheck(scope, outcome string) {
	m.PinChecks.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) IncrementLockout() {
	m.Lockouts.Inc()
}
