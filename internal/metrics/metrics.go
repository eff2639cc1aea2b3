package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for source refreshes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	refreshTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// MustNewMetrics registers the collectors with reg and panics on duplicate
// registration. Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	refreshTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dailybrief",
			Subsystem: "source",
			Name:      "refresh_total",
			Help:      "Source refreshes by outcome (fresh, stale, empty, unconfigured, error).",
		},
		[]string{"source", "outcome"},
	)
	fetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dailybrief",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of live fetches per source.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	reg.MustRegister(refreshTotal, fetchDuration)
	return &Metrics{refreshTotal: refreshTotal, fetchDuration: fetchDuration}
}

func (m *Metrics) ObserveRefresh(source, outcome string, fetch time.Duration) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(source, outcome).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(fetch.Seconds())
}
