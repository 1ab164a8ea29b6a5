package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"GapSight/internal/domain/models"
	domrepo "GapSight/internal/domain/repository"
	"GapSight/internal/services/timeseries"
	"GapSight/pkg/logger"
)

// BatchProc is the downstream the pipeline forwards to.
type BatchProc interface {
	ProcessBatch(ctx context.Context, snaps []*models.FollowerSnapshot) error
}

type snapshotKey struct {
	account string
	date    string
}

// SnapshotPipeline sits between the poller and the archive backend. It drops
// invalid snapshots, forwards a (account, date) pair only when its count changed
// since it was last forwarded, and keeps failed batches for the next call.
type SnapshotPipeline struct {
	proc    BatchProc
	metrics domrepo.Metrics
	log     *logger.Logger
	bufSize int
	seen    *lru.Cache[snapshotKey, int64]

	mu      sync.Mutex
	pending []*models.FollowerSnapshot
}

type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	bufSize  int
	seenSize int
	log      *logger.Logger
}

// WithBufferSize bounds how many snapshots are kept while downstream is failing.
func WithBufferSize(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// WithSeenSize bounds the change filter's memory.
func WithSeenSize(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.seenSize = n
		}
	}
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(c *pipelineConfig) { c.log = l }
}

func NewSnapshotPipeline(proc BatchProc, metrics domrepo.Metrics, opts ...PipelineOption) (*SnapshotPipeline, error) {
	cfg := pipelineConfig{bufSize: 10_000, seenSize: 100_000}
	for _, opt := range opts {
		opt(&cfg)
	}
	seen, err := lru.New[snapshotKey, int64](cfg.seenSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot pipeline: %w", err)
	}
	if cfg.log == nil {
		cfg.log = logger.NewNop()
	}
	return &SnapshotPipeline{
		proc:    proc,
		metrics: metrics,
		log:     cfg.log,
		bufSize: cfg.bufSize,
		seen:    seen,
	}, nil
}

// Process forwards the changed, valid subset of snaps together with anything left
// over from a failed call. It returns the number of snapshots forwarded.
func (p *SnapshotPipeline) Process(ctx context.Context, snaps []*models.FollowerSnapshot) (int, error) {
	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := make([]*models.FollowerSnapshot, 0, len(p.pending)+len(snaps))
	pos := make(map[snapshotKey]int, cap(batch))
	add := func(s *models.FollowerSnapshot) {
		k := snapshotKey{s.Account, s.Date}
		if i, ok := pos[k]; ok {
			batch[i] = s
			return
		}
		pos[k] = len(batch)
		batch = append(batch, s)
	}
	for _, s := range p.pending {
		add(s)
	}
	for _, s := range snaps {
		if err := ValidateSnapshot(s); err != nil {
			p.metrics.RecordError("pipeline_validate")
			p.log.Debug("snapshot dropped", logger.Error(err))
			continue
		}
		if prev, ok := p.seen.Get(snapshotKey{s.Account, s.Date}); ok && prev == s.Followers {
			continue
		}
		add(s)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := p.proc.ProcessBatch(ctx, batch); err != nil {
		p.metrics.RecordError("pipeline_process")
		if len(batch) > p.bufSize {
			p.metrics.RecordError("pipeline_buffer_drop")
			batch = batch[len(batch)-p.bufSize:]
		}
		p.pending = batch
		return 0, fmt.Errorf("pipeline downstream: %w", err)
	}

	p.pending = nil
	for _, s := range batch {
		p.seen.Add(snapshotKey{s.Account, s.Date}, s.Followers)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return len(batch), nil
}

// Pending reports how many snapshots wait for a retry.
func (p *SnapshotPipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

var (
	errNilSnapshot   = errors.New("snapshot is nil")
	errEmptyAccount  = errors.New("snapshot account is empty")
	errNegativeCount = errors.New("snapshot followers is negative")
)

// ValidateSnapshot checks the fields an archived snapshot must carry.
func ValidateSnapshot(s *models.FollowerSnapshot) error {
	if s == nil {
		return errNilSnapshot
	}
	if s.Account == "" {
		return errEmptyAccount
	}
	if _, err := timeseries.ParseDate(s.Date); err != nil {
		return fmt.Errorf("snapshot %s: %w", s.Account, err)
	}
	if s.Followers < 0 {
		return fmt.Errorf("%w: %s %s", errNegativeCount, s.Account, s.Date)
	}
	return nil
}
