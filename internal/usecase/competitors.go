package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"GapSight/internal/domain/models"
	domrepo "GapSight/internal/domain/repository"
	"GapSight/internal/domain/service"
	scache "GapSight/internal/service/cache"
	"GapSight/internal/services/timeseries"
	"GapSight/pkg/cache"
	"GapSight/pkg/logger"
)

const (
	GrowthSourceUpstream = "upstream"
	GrowthSourceArchive  = "archive"
)

// CompetitorsUseCase assembles the competitors page and its growth chart.
type CompetitorsUseCase struct {
	src      service.AnalyticsSource
	opts     Options
	history  domrepo.HistoryStore
	window   time.Duration
	charts   scache.BytesCache
	renderer service.ChartRenderer
	now      func() time.Time
}

// CompetitorsOption adds the optional growth archive and chart rendering.
type CompetitorsOption func(*CompetitorsUseCase)

// WithHistory falls back to archived snapshots from the last days when upstream growth fails.
func WithHistory(h domrepo.HistoryStore, days int) CompetitorsOption {
	return func(uc *CompetitorsUseCase) {
		uc.history = h
		if days > 0 {
			uc.window = time.Duration(days) * 24 * time.Hour
		}
	}
}

func WithChartRenderer(r service.ChartRenderer, c scache.BytesCache) CompetitorsOption {
	return func(uc *CompetitorsUseCase) {
		uc.renderer = r
		uc.charts = c
	}
}

func NewCompetitorsUseCase(src service.AnalyticsSource, opts Options, extra ...CompetitorsOption) *CompetitorsUseCase {
	uc := &CompetitorsUseCase{
		src:    src,
		opts:   opts.withDefaults(),
		window: 90 * 24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range extra {
		opt(uc)
	}
	return uc
}

// View loads compare, gaps and growth concurrently. Any failure fails the page.
func (uc *CompetitorsUseCase) View(ctx context.Context) (*models.CompetitorsView, error) {
	if uc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
	}

	var (
		compare []models.CompetitorStat
		gaps    []models.ContentGap
		series  []timeseries.Series
		source  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		compare, err = cache.GetOrLoad(gctx, uc.opts.Cache, keyCompare, uc.opts.TTL.Growth, uc.opts.Observer, uc.src.Compare)
		return err
	})
	g.Go(func() (err error) {
		gaps, err = cache.GetOrLoad(gctx, uc.opts.Cache, keyGaps, uc.opts.TTL.Growth, uc.opts.Observer, uc.src.Gaps)
		return err
	})
	g.Go(func() (err error) {
		series, source, err = uc.growthSeries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aligned, err := uc.align(series, source, timeseries.FirstWins)
	if err != nil {
		return nil, err
	}
	if compare == nil {
		compare = []models.CompetitorStat{}
	}
	if gaps == nil {
		gaps = []models.ContentGap{}
	}
	return &models.CompetitorsView{
		Compare:      compare,
		Gaps:         gaps,
		Growth:       aligned,
		Series:       aligned.Names(),
		Latest:       aligned.Latest(),
		GrowthSource: source,
		FetchedAt:    uc.now().UTC(),
	}, nil
}

// GrowthChart returns the competitors' follower series merged onto one date axis.
func (uc *CompetitorsUseCase) GrowthChart(ctx context.Context, policy timeseries.DuplicatePolicy) (*timeseries.Aligned, string, error) {
	series, source, err := uc.growthSeries(ctx)
	if err != nil {
		return nil, "", err
	}
	a, err := uc.align(series, source, policy)
	if err != nil {
		return nil, "", err
	}
	return a, source, nil
}

var (
	ErrChartsDisabled  = errors.New("chart rendering is not configured")
	ErrHistoryDisabled = errors.New("snapshot history is not configured")
	ErrInvalidRange    = errors.New("history range ends before it starts")
)

// History aligns archived snapshots of accounts between from and to. Zero bounds
// default to the fallback window ending now; no accounts means all of them.
func (uc *CompetitorsUseCase) History(ctx context.Context, accounts []string, from, to time.Time) (*timeseries.Aligned, error) {
	if uc.history == nil {
		return nil, ErrHistoryDisabled
	}
	if to.IsZero() {
		to = uc.now()
	}
	if from.IsZero() {
		from = to.Add(-uc.window)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	series, err := uc.history.History(ctx, accounts, from, to)
	if err != nil {
		return nil, fmt.Errorf("growth archive: %w", err)
	}
	return uc.align(series, GrowthSourceArchive, timeseries.FirstWins)
}

// GrowthPNG renders the growth chart. Rendered images are cached by policy and size.
func (uc *CompetitorsUseCase) GrowthPNG(ctx context.Context, policy timeseries.DuplicatePolicy, width, height int) ([]byte, error) {
	if uc.renderer == nil {
		return nil, ErrChartsDisabled
	}
	key := cache.GenerateKey("chart", keyGrowth, policy, width, height)
	if uc.charts != nil {
		if b, ok, err := uc.charts.GetBytes(ctx, key); err == nil && ok {
			uc.opts.Observer.CacheResult("chart", true)
			return b, nil
		}
	}
	uc.opts.Observer.CacheResult("chart", false)

	a, _, err := uc.GrowthChart(ctx, policy)
	if err != nil {
		return nil, err
	}
	png, err := uc.renderer.GrowthPNG(a, width, height)
	if err != nil {
		return nil, fmt.Errorf("render growth chart: %w", err)
	}
	if uc.charts != nil && uc.opts.TTL.Chart > 0 {
		if err := uc.charts.SetBytes(ctx, key, png, uc.opts.TTL.Chart); err != nil {
			uc.opts.Logger.Warn("chart cache write failed", logger.Error(err))
		}
	}
	return png, nil
}

// growthSeries prefers the upstream endpoint and falls back to the archive.
func (uc *CompetitorsUseCase) growthSeries(ctx context.Context) ([]timeseries.Series, string, error) {
	series, err := cache.GetOrLoad(ctx, uc.opts.Cache, keyGrowth, uc.opts.TTL.Growth, uc.opts.Observer, uc.src.Growth)
	if err == nil {
		return series, GrowthSourceUpstream, nil
	}
	if uc.history == nil || ctx.Err() != nil {
		return nil, "", err
	}

	now := uc.now()
	archived, herr := uc.history.History(ctx, nil, now.Add(-uc.window), now)
	if herr != nil {
		return nil, "", errors.Join(err, fmt.Errorf("growth archive: %w", herr))
	}
	uc.opts.Logger.Warn("upstream growth unavailable, serving archive",
		logger.Error(err), logger.Int("series", len(archived)))
	return archived, GrowthSourceArchive, nil
}

func (uc *CompetitorsUseCase) align(series []timeseries.Series, source string, policy timeseries.DuplicatePolicy) (*timeseries.Aligned, error) {
	a, err := timeseries.Align(series, timeseries.WithDuplicatePolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("align growth: %w", err)
	}
	uc.opts.Observer.ObserveAligned(source, a.Len())
	return a, nil
}
