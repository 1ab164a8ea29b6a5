package service

import (
	"context"
	"io"

	"GapSight/internal/domain/models"
	"GapSight/internal/services/timeseries"
)

// AnalyticsSource is the upstream GapSight API. Every method is one opaque JSON endpoint.
type AnalyticsSource interface {
	Health(ctx context.Context) error
	Summary(ctx context.Context) (models.Summary, error)
	Followers(ctx context.Context) ([]timeseries.Sample, error)
	TrendPrediction(ctx context.Context) ([]timeseries.TrendPoint, error)
	ContentTypes(ctx context.Context) ([]models.ContentTypeStat, error)
	FrequencyCorrelation(ctx context.Context) ([]models.FrequencyBucket, error)
	Competitors(ctx context.Context) ([]models.Competitor, error)
	Compare(ctx context.Context) ([]models.CompetitorStat, error)
	Gaps(ctx context.Context) ([]models.ContentGap, error)
	Growth(ctx context.Context) ([]timeseries.Series, error)
	Insights(ctx context.Context) (models.Insights, error)
	Workflows(ctx context.Context) ([]models.Workflow, error)
	// Report streams an export into w.
	Report(ctx context.Context, kind, format string, w io.Writer) (models.Report, error)
}

// ChartRenderer draws aligned growth series.
type ChartRenderer interface {
	GrowthPNG(a *timeseries.Aligned, width, height int) ([]byte, error)
}
