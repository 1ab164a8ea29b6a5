package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"GapSight/internal/domain/models"
	"GapSight/internal/domain/service"
	"GapSight/internal/services/timeseries"
	"GapSight/pkg/cache"
	"GapSight/pkg/logger"
)

// DashboardUseCase assembles the dashboard page.
type DashboardUseCase struct {
	src  service.AnalyticsSource
	opts Options
	now  func() time.Time
}

func NewDashboardUseCase(src service.AnalyticsSource, opts Options) *DashboardUseCase {
	return &DashboardUseCase{src: src, opts: opts.withDefaults(), now: time.Now}
}

func (uc *DashboardUseCase) Summary(ctx context.Context) (models.Summary, error) {
	return cache.GetOrLoad(ctx, uc.opts.Cache, keySummary, uc.opts.TTL.Summary, uc.opts.Observer, uc.src.Summary)
}

func (uc *DashboardUseCase) Followers(ctx context.Context) ([]timeseries.Sample, error) {
	return cache.GetOrLoad(ctx, uc.opts.Cache, keyFollowers, uc.opts.TTL.Summary, uc.opts.Observer, uc.src.Followers)
}

// Trend returns the follower trend split into actual and predicted lines.
func (uc *DashboardUseCase) Trend(ctx context.Context) ([]timeseries.TrendRow, error) {
	points, err := cache.GetOrLoad(ctx, uc.opts.Cache, keyTrend, uc.opts.TTL.Summary, uc.opts.Observer, uc.src.TrendPrediction)
	if err != nil {
		return nil, err
	}
	return timeseries.SplitTrend(points), nil
}

func (uc *DashboardUseCase) ContentTypes(ctx context.Context) ([]models.ContentTypeStat, error) {
	return cache.GetOrLoad(ctx, uc.opts.Cache, keyContentTypes, uc.opts.TTL.Summary, uc.opts.Observer, uc.src.ContentTypes)
}

// Frequency returns posting frequency against engagement as scatter points.
func (uc *DashboardUseCase) Frequency(ctx context.Context) ([]models.ScatterPoint, error) {
	buckets, err := cache.GetOrLoad(ctx, uc.opts.Cache, keyFrequency, uc.opts.TTL.Summary, uc.opts.Observer, uc.src.FrequencyCorrelation)
	if err != nil {
		return nil, err
	}
	return Scatter(buckets), nil
}

// Overview loads every dashboard part concurrently. Only a summary failure fails
// the call; other parts come back empty with their error recorded.
func (uc *DashboardUseCase) Overview(ctx context.Context) (*models.Overview, error) {
	if uc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
	}

	out := &models.Overview{
		Followers:    []timeseries.Sample{},
		Trend:        []timeseries.TrendRow{},
		ContentTypes: []models.ContentTypeStat{},
		Frequency:    []models.ScatterPoint{},
	}
	var (
		mu     sync.Mutex
		errs   = map[string]string{}
		trendE error
	)
	optional := func(part string, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs[part] = err.Error()
		uc.opts.Logger.Warn("dashboard part unavailable", logger.String("part", part), logger.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := uc.Summary(gctx)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		out.Summary = s
		return nil
	})
	g.Go(func() error {
		if v, err := uc.Followers(gctx); err != nil {
			optional(keyFollowers, err)
		} else if v != nil {
			out.Followers = v
		}
		return nil
	})
	g.Go(func() error {
		v, err := uc.Trend(gctx)
		if err != nil {
			trendE = err
			optional(keyTrend, err)
		} else {
			out.Trend = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := uc.ContentTypes(gctx); err != nil {
			optional(keyContentTypes, err)
		} else if v != nil {
			out.ContentTypes = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := uc.Frequency(gctx); err != nil {
			optional(keyFrequency, err)
		} else {
			out.Frequency = v
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Without a forecast the chart still shows the observed history.
	if trendE != nil && len(out.Followers) > 0 {
		out.Trend = timeseries.SplitTrend(timeseries.ActualTrend(out.Followers))
	}
	if len(errs) > 0 {
		out.Errors = errs
	}
	out.FetchedAt = uc.now().UTC()
	return out, nil
}

// Scatter places each period's post count against its average engagement.
func Scatter(buckets []models.FrequencyBucket) []models.ScatterPoint {
	out := make([]models.ScatterPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, models.ScatterPoint{Period: b.Week, Posts: b.PostCount, Engagement: b.AvgEngagement})
	}
	return out
}
