package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/inventory-occ/internal/core/domain"
)

type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "sell_attempts_total",
			Help:      "Sell attempts by terminal outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "sell_attempt_duration_seconds",
			Help:      "Time from begin to commit or abort of a sell attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.attempts, m.duration)

	for _, o := range domain.Outcomes {
		m.attempts.WithLabelValues(string(o))
	}
	return m
}

func (m *Metrics) Observed(int, string, domain.Inventory) {}

func (m *Metrics) Finished(res domain.AttemptResult) {
	m.attempts.WithLabelValues(string(res.Outcome)).Inc()
	m.duration.WithLabelValues(string(res.Outcome)).Observe(res.Duration.Seconds())
}
