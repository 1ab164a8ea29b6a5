package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GapSight/internal/domain/models"
	"GapSight/internal/domain/service"
	"GapSight/pkg/cache"
	"GapSight/pkg/logger"
	"GapSight/pkg/queue"
)

// InsightsRefreshType is the queue message type handled by InsightsRefreshJob.
const InsightsRefreshType = "insights.refresh"

const refreshLockTTL = time.Minute

// ErrRefreshInProgress is returned when another instance holds the refresh lock.
var ErrRefreshInProgress = errors.New("insights refresh already in progress")

type RefreshRequest struct {
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason,omitempty"`
}

type InsightsUseCase struct {
	src   service.AnalyticsSource
	opts  Options
	queue queue.Publisher
	now   func() time.Time
}

// NewInsightsUseCase wires the use case; q may be nil, then Refresh runs inline.
func NewInsightsUseCase(src service.AnalyticsSource, opts Options, q queue.Publisher) *InsightsUseCase {
	return &InsightsUseCase{src: src, opts: opts.withDefaults(), queue: q, now: time.Now}
}

func (uc *InsightsUseCase) Get(ctx context.Context) (models.Insights, error) {
	return cache.GetOrLoad(ctx, uc.opts.Cache, keyInsights, uc.opts.TTL.Insights, uc.opts.Observer, uc.src.Insights)
}

func (uc *InsightsUseCase) Workflows(ctx context.Context) ([]models.Workflow, error) {
	return cache.GetOrLoad(ctx, uc.opts.Cache, keyWorkflows, uc.opts.TTL.Insights, uc.opts.Observer, uc.src.Workflows)
}

// Refresh schedules a reload of the cached insights. It reports whether the work
// was queued; without a queue it reloads before returning.
func (uc *InsightsUseCase) Refresh(ctx context.Context, reason string) (bool, error) {
	req := RefreshRequest{RequestedAt: uc.now().UTC(), Reason: reason}
	if uc.queue != nil {
		if err := uc.queue.PublishMessage(ctx, InsightsRefreshType, req); err != nil {
			return false, fmt.Errorf("enqueue insights refresh: %w", err)
		}
		return true, nil
	}
	return false, uc.refresh(ctx, req)
}

// refresh bypasses the cache, then overwrites it.
func (uc *InsightsUseCase) refresh(ctx context.Context, req RefreshRequest) error {
	lock := cache.GenerateKey("lock", keyInsights)
	if c := uc.opts.Cache; c != nil {
		ok, err := c.TryLock(ctx, lock, refreshLockTTL)
		if err == nil && !ok {
			return ErrRefreshInProgress
		}
		if err == nil {
			defer func() { _ = c.Unlock(context.WithoutCancel(ctx), lock) }()
		}
	}

	ins, err := uc.src.Insights(ctx)
	if err != nil {
		return fmt.Errorf("refresh insights: %w", err)
	}
	wf, err := uc.src.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("refresh workflows: %w", err)
	}
	if c := uc.opts.Cache; c != nil && uc.opts.TTL.Insights > 0 {
		if err := c.Set(ctx, keyInsights, ins, uc.opts.TTL.Insights); err != nil {
			uc.opts.Logger.Warn("insights cache write failed", logger.Error(err))
		}
		if err := c.Set(ctx, keyWorkflows, wf, uc.opts.TTL.Insights); err != nil {
			uc.opts.Logger.Warn("workflows cache write failed", logger.Error(err))
		}
	}
	uc.opts.Logger.Info("insights refreshed",
		logger.String("reason", req.Reason),
		logger.String("source", ins.Source),
		logger.Int("recommendations", len(ins.Recommendations)))
	return nil
}

// InsightsRefreshJob runs queued refreshes.
type InsightsRefreshJob struct {
	uc *InsightsUseCase
}

var _ queue.Job = (*InsightsRefreshJob)(nil)

func NewInsightsRefreshJob(uc *InsightsUseCase) *InsightsRefreshJob {
	return &InsightsRefreshJob{uc: uc}
}

func (j *InsightsRefreshJob) Name() string { return "insights-refresh" }
func (j *InsightsRefreshJob) Type() string { return InsightsRefreshType }

func (j *InsightsRefreshJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[RefreshRequest](payload)
	if err != nil {
		return err
	}
	err = j.uc.refresh(ctx, *req)
	if errors.Is(err, ErrRefreshInProgress) {
		return nil
	}
	return err
}
