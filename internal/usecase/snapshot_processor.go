package usecase

import (
	"context"
	"fmt"
	"time"

	"GapSight/internal/domain/models"
	drepo "GapSight/internal/domain/repository"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// SnapshotProcessor routes snapshot batches to Kafka or straight to ClickHouse.
type SnapshotProcessor struct {
	pub       drepo.SnapshotPublisher
	store     drepo.SnapshotStorage
	metrics   drepo.Metrics
	backend   string
	batchSize int
	timeout   time.Duration
}

func NewSnapshotProcessor(
	pub drepo.SnapshotPublisher,
	store drepo.SnapshotStorage,
	metrics drepo.Metrics,
	backend string,
	batchSize int,
	timeout time.Duration,
) (*SnapshotProcessor, error) {
	switch {
	case backend == BackendKafka && pub == nil:
		return nil, fmt.Errorf("snapshot backend %q has no publisher", backend)
	case backend == BackendClickHouse && store == nil:
		return nil, fmt.Errorf("snapshot backend %q has no storage", backend)
	case backend != BackendKafka && backend != BackendClickHouse:
		return nil, fmt.Errorf("unknown snapshot backend: %s", backend)
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SnapshotProcessor{
		pub:       pub,
		store:     store,
		metrics:   metrics,
		backend:   backend,
		batchSize: batchSize,
		timeout:   timeout,
	}, nil
}

// ProcessBatch writes snaps in chunks of batchSize, each bounded by the batch timeout.
func (p *SnapshotProcessor) ProcessBatch(ctx context.Context, snaps []*models.FollowerSnapshot) error {
	for start := 0; start < len(snaps); start += p.batchSize {
		chunk := snaps[start:min(start+p.batchSize, len(snaps))]
		if err := p.write(ctx, chunk); err != nil {
			p.metrics.RecordError("process_batch")
			return fmt.Errorf("process batch: %w", err)
		}
		p.metrics.RecordSnapshotsRouted(p.backend, len(chunk))
	}
	return nil
}

func (p *SnapshotProcessor) write(ctx context.Context, chunk []*models.FollowerSnapshot) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() { p.metrics.RecordLatency("process_batch", time.Since(start).Seconds()) }()

	if p.backend == BackendKafka {
		return p.pub.PublishBatch(ctx, chunk)
	}
	return p.store.StoreBatch(ctx, chunk)
}

func (p *SnapshotProcessor) Backend() string { return p.backend }

func (p *SnapshotProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
