package usecase

import (
	"context"
	"io"
	"time"

	"GapSight/internal/domain/models"
	"GapSight/internal/domain/service"
	"GapSight/pkg/logger"
)

// ReportsUseCase proxies report exports without buffering them.
type ReportsUseCase struct {
	src service.AnalyticsSource
	log *logger.Logger
}

func NewReportsUseCase(src service.AnalyticsSource, log *logger.Logger) *ReportsUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReportsUseCase{src: src, log: log}
}

func (uc *ReportsUseCase) Download(ctx context.Context, kind, format string, w io.Writer) (models.Report, error) {
	start := time.Now()
	rep, err := uc.src.Report(ctx, kind, format, w)
	if err != nil {
		uc.log.Error("report download failed",
			logger.String("kind", kind), logger.String("format", format), logger.Error(err))
		return rep, err
	}
	uc.log.Info("report downloaded",
		logger.String("report", rep.Name),
		logger.Int64("bytes", rep.Size),
		logger.Duration("took", time.Since(start)))
	return rep, nil
}
