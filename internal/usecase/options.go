package usecase

import (
	"time"

	"GapSight/pkg/cache"
	"GapSight/pkg/logger"
)

// Observer is told about cache lookups and aligned charts.
type Observer interface {
	CacheResult(kind string, hit bool)
	ObserveAligned(source string, rows int)
}

type nopObserver struct{}

func (nopObserver) CacheResult(string, bool)  {}
func (nopObserver) ObserveAligned(string, int) {}

// CacheTTL is how long each kind of upstream response is reused.
type CacheTTL struct {
	Summary  time.Duration
	Growth   time.Duration
	Insights time.Duration
	Chart    time.Duration
}

// Options carries the dependencies shared by the page use cases. Zero values are valid:
// no cache, no metrics and a discarding logger.
type Options struct {
	Cache    cache.Service
	TTL      CacheTTL
	Observer Observer
	Logger   *logger.Logger
	// Timeout bounds one page load, 0 means no extra bound.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	return o
}

const (
	keySummary      = "summary"
	keyFollowers    = "followers"
	keyTrend        = "trend"
	keyContentTypes = "content_types"
	keyFrequency    = "frequency"
	keyGrowth       = "growth"
	keyCompare      = "compare"
	keyGaps         = "gaps"
	keyInsights     = "insights"
	keyWorkflows    = "workflows"
)
