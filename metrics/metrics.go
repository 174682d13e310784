// Package metrics holds the Prometheus metrics of the outliers server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the filter metrics. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	removed  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outliers_filter_requests_total",
			Help: "Total number of filter requests by method and status code",
		}, []string{"method", "code"}),
		removed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outliers_rows_removed_total",
			Help: "Total number of rows removed as outliers",
		}, []string{"method"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outliers_filter_duration_seconds",
			Help:    "Filter duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Observe records one filter call.
func (m *Metrics) Observe(method, code string, removed int, d time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(method, code).Inc()
	if removed > 0 {
		m.removed.WithLabelValues(method).Add(float64(removed))
	}
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}
