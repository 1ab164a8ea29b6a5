package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"GapSight/internal/domain/models"
	"GapSight/internal/services/timeseries"
)

var errUpstream = errors.New("upstream down")

// fakeSource answers every endpoint from its Fn field; unset fields return zero values.
type fakeSource struct {
	SummaryFn      func(ctx context.Context) (models.Summary, error)
	FollowersFn    func(ctx context.Context) ([]timeseries.Sample, error)
	TrendFn        func(ctx context.Context) ([]timeseries.TrendPoint, error)
	ContentTypesFn func(ctx context.Context) ([]models.ContentTypeStat, error)
	FrequencyFn    func(ctx context.Context) ([]models.FrequencyBucket, error)
	CompareFn      func(ctx context.Context) ([]models.CompetitorStat, error)
	GapsFn         func(ctx context.Context) ([]models.ContentGap, error)
	GrowthFn       func(ctx context.Context) ([]timeseries.Series, error)
	InsightsFn     func(ctx context.Context) (models.Insights, error)
	WorkflowsFn    func(ctx context.Context) ([]models.Workflow, error)
	ReportFn       func(ctx context.Context, kind, format string, w io.Writer) (models.Report, error)

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSource) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func call[T any](ctx context.Context, f *fakeSource, name string, fn func(context.Context) (T, error)) (T, error) {
	f.hit(name)
	if fn == nil {
		var zero T
		return zero, nil
	}
	return fn(ctx)
}

func (f *fakeSource) Health(context.Context) error { return nil }
func (f *fakeSource) Summary(ctx context.Context) (models.Summary, error) {
	return call(ctx, f, "summary", f.SummaryFn)
}
func (f *fakeSource) Followers(ctx context.Context) ([]timeseries.Sample, error) {
	return call(ctx, f, "followers", f.FollowersFn)
}
func (f *fakeSource) TrendPrediction(ctx context.Context) ([]timeseries.TrendPoint, error) {
	return call(ctx, f, "trend", f.TrendFn)
}
func (f *fakeSource) ContentTypes(ctx context.Context) ([]models.ContentTypeStat, error) {
	return call(ctx, f, "content_types", f.ContentTypesFn)
}
func (f *fakeSource) FrequencyCorrelation(ctx context.Context) ([]models.FrequencyBucket, error) {
	return call(ctx, f, "frequency", f.FrequencyFn)
}
func (f *fakeSource) Competitors(context.Context) ([]models.Competitor, error) { return nil, nil }
func (f *fakeSource) Compare(ctx context.Context) ([]models.CompetitorStat, error) {
	return call(ctx, f, "compare", f.CompareFn)
}
func (f *fakeSource) Gaps(ctx context.Context) ([]models.ContentGap, error) {
	return call(ctx, f, "gaps", f.GapsFn)
}
func (f *fakeSource) Growth(ctx context.Context) ([]timeseries.Series, error) {
	return call(ctx, f, "growth", f.GrowthFn)
}
func (f *fakeSource) Insights(ctx context.Context) (models.Insights, error) {
	return call(ctx, f, "insights", f.InsightsFn)
}
func (f *fakeSource) Workflows(ctx context.Context) ([]models.Workflow, error) {
	return call(ctx, f, "workflows", f.WorkflowsFn)
}
func (f *fakeSource) Report(ctx context.Context, kind, format string, w io.Writer) (models.Report, error) {
	f.hit("report")
	if f.ReportFn == nil {
		return models.Report{}, nil
	}
	return f.ReportFn(ctx, kind, format, w)
}

type fakeHistory struct {
	HistoryFn func(ctx context.Context, accounts []string, from, to time.Time) ([]timeseries.Series, error)
}

func (f *fakeHistory) History(ctx context.Context, accounts []string, from, to time.Time) ([]timeseries.Series, error) {
	return f.HistoryFn(ctx, accounts, from, to)
}

type fakeRenderer struct {
	calls int
}

func (f *fakeRenderer) GrowthPNG(a *timeseries.Aligned, width, height int) ([]byte, error) {
	f.calls++
	return []byte{0x89, 'P', 'N', 'G', byte(a.Len())}, nil
}

type fakeQueue struct {
	PublishFn func(ctx context.Context, msgType string, payload interface{}) error
	published []string
}

func (f *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	f.published = append(f.published, msgType)
	if f.PublishFn != nil {
		return f.PublishFn(ctx, msgType, payload)
	}
	return nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	routed  map[string]int
	errors  map[string]int
	latest  map[string]int64
	latency int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{routed: map[string]int{}, errors: map[string]int{}, latest: map[string]int64{}}
}

func (m *fakeMetrics) RecordSnapshotsRouted(backend string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routed[backend] += n
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLatestFollowers(account string, followers int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest[account] = followers
}

func (m *fakeMetrics) RecordLatency(string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency++
}

type alignedObserver struct {
	mu      sync.Mutex
	sources []string
}

func (o *alignedObserver) CacheResult(string, bool) {}

func (o *alignedObserver) ObserveAligned(source string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources = append(o.sources, source)
}
