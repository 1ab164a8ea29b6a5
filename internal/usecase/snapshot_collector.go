package usecase

import (
	"context"
	"fmt"
	"time"

	"GapSight/internal/domain/models"
	drepo "GapSight/internal/domain/repository"
	mid "GapSight/internal/middleware"
	"GapSight/internal/services/timeseries"
	"GapSight/pkg/logger"
)

// GrowthSource is the part of the upstream the collector polls.
type GrowthSource interface {
	Growth(ctx context.Context) ([]timeseries.Series, error)
}

// GrowthNotifier is told about every successfully aligned poll.
type GrowthNotifier interface {
	GrowthUpdated(a *timeseries.Aligned)
}

// SnapshotCollector polls competitor growth and archives it through the pipeline.
type SnapshotCollector struct {
	src      GrowthSource
	pipe     *mid.SnapshotPipeline
	metrics  drepo.Metrics
	notify   GrowthNotifier
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewSnapshotCollector(src GrowthSource, pipe *mid.SnapshotPipeline, metrics drepo.Metrics, notify GrowthNotifier, interval time.Duration, log *logger.Logger) *SnapshotCollector {
	if log == nil {
		log = logger.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SnapshotCollector{
		src:      src,
		pipe:     pipe,
		metrics:  metrics,
		notify:   notify,
		interval: interval,
		log:      log.With(logger.String("component", "snapshot_collector")),
		now:      time.Now,
	}
}

// Run polls once immediately and then every interval until ctx is done.
func (c *SnapshotCollector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		if n, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("snapshot poll failed", logger.Error(err))
		} else {
			c.log.Debug("snapshot poll", logger.Int("forwarded", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches growth once and returns how many snapshots were forwarded.
func (c *SnapshotCollector) Poll(ctx context.Context) (int, error) {
	series, err := c.src.Growth(ctx)
	if err != nil {
		c.metrics.RecordError("poll")
		return 0, fmt.Errorf("poll growth: %w", err)
	}
	a, err := timeseries.Align(series)
	if err != nil {
		c.metrics.RecordError("poll_align")
		return 0, fmt.Errorf("poll growth: %w", err)
	}
	for name, v := range a.Latest() {
		c.metrics.RecordLatestFollowers(name, v)
	}
	if c.notify != nil {
		c.notify.GrowthUpdated(a)
	}
	return c.pipe.Process(ctx, Flatten(a, c.now().UTC()))
}

// Flatten turns aligned rows into one snapshot per present value.
func Flatten(a *timeseries.Aligned, observed time.Time) []*models.FollowerSnapshot {
	out := make([]*models.FollowerSnapshot, 0, a.Len()*len(a.Names()))
	for row := range a.All() {
		for _, name := range a.Names() {
			if v, ok := row.Value(name); ok {
				out = append(out, &models.FollowerSnapshot{
					Account:    name,
					Date:       row.Date,
					Followers:  v,
					ObservedAt: observed,
				})
			}
		}
	}
	return out
}
