package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsRouted *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latestFollowers *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New registers the snapshot pipeline collectors on reg (the default registry when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		snapshotsRouted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapsight_snapshots_routed_total",
				Help: "Follower snapshots handed to a storage backend",
			},
			[]string{"backend"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapsight_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latestFollowers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gapsight_latest_followers",
				Help: "Most recent follower count seen per account",
			},
			[]string{"account"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gapsight_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSnapshotsRouted(backend string, n int) {
	r.snapshotsRouted.WithLabelValues(backend).Add(float64(n))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatestFollowers(account string, followers int64) {
	r.latestFollowers.WithLabelValues(account).Set(float64(followers))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
