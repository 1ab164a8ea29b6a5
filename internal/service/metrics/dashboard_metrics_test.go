package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDashboardObservers(t *testing.T) {
	Register(prometheus.NewRegistry())
	var d Dashboard

	d.CacheResult("growth", true)
	d.CacheResult("growth", false)
	d.CacheResult("growth", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(CacheResults.WithLabelValues("growth", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(CacheResults.WithLabelValues("growth", "miss")))

	d.ObserveUpstream("/competitors/gaps", 0.2, nil)
	d.ObserveUpstream("/competitors/gaps", 0.4, errors.New("502"))
	assert.Equal(t, 1.0, testutil.ToFloat64(UpstreamErrors.WithLabelValues("/competitors/gaps")))
	assert.Equal(t, 1, testutil.CollectAndCount(UpstreamLatency))
}
