package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRefresh(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.ObserveRefresh("github", "fresh", 20*time.Millisecond)
	m.ObserveRefresh("github", "fresh", 10*time.Millisecond)
	m.ObserveRefresh("github", "stale", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues("github", "fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues("github", "stale")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveRefresh("calendar", "fresh", time.Second) })
}
