package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gapsight",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of upstream API calls including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gapsight",
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Failed upstream calls by endpoint",
		},
		[]string{"endpoint"},
	)

	CacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gapsight",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	AlignedRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gapsight",
			Subsystem: "timeseries",
			Name:      "aligned_rows",
			Help:      "Rows produced per alignment",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"source"},
	)
)

// Register adds the dashboard collectors to reg once per process.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(UpstreamLatency, UpstreamErrors, CacheResults, AlignedRows)
	})
}

// Dashboard adapts the collectors to the observer interfaces of upstream, pkg/cache and the use cases.
type Dashboard struct{}

func (Dashboard) ObserveUpstream(endpoint string, seconds float64, err error) {
	UpstreamLatency.WithLabelValues(endpoint).Observe(seconds)
	if err != nil {
		UpstreamErrors.WithLabelValues(endpoint).Inc()
	}
}

func (Dashboard) CacheResult(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheResults.WithLabelValues(kind, result).Inc()
}

func (Dashboard) ObserveAligned(source string, rows int) {
	AlignedRows.WithLabelValues(source).Observe(float64(rows))
}
