package repository

import (
	"context"
	"time"

	"GapSight/internal/domain/models"
	"GapSight/internal/services/timeseries"
)

type SnapshotPublisher interface {
	Publish(ctx context.Context, s *models.FollowerSnapshot) error
	PublishBatch(ctx context.Context, snaps []*models.FollowerSnapshot) error
	Close() error
}

type SnapshotStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.FollowerSnapshot) error
	StoreBatch(ctx context.Context, snaps []*models.FollowerSnapshot) error
	Health(ctx context.Context) error
	Close() error
}

// HistoryStore reads archived snapshots back as chartable series.
// An empty accounts slice means every account.
type HistoryStore interface {
	History(ctx context.Context, accounts []string, from, to time.Time) ([]timeseries.Series, error)
}

type Metrics interface {
	RecordSnapshotsRouted(backend string, n int)
	RecordError(kind string)
	RecordLatestFollowers(account string, followers int64)
	RecordLatency(op string, seconds float64)
}
