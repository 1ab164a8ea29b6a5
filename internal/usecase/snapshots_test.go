package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GapSight/internal/domain/models"
	mid "GapSight/internal/middleware"
	"GapSight/internal/services/timeseries"
	pkgkafka "GapSight/pkg/kafka"
)

type memStorage struct {
	mu      sync.Mutex
	rows    []*models.FollowerSnapshot
	batches int
	err     error
}

func (s *memStorage) Init(context.Context) error { return nil }

func (s *memStorage) Store(ctx context.Context, snap *models.FollowerSnapshot) error {
	return s.StoreBatch(ctx, []*models.FollowerSnapshot{snap})
}

func (s *memStorage) StoreBatch(_ context.Context, snaps []*models.FollowerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches++
	s.rows = append(s.rows, snaps...)
	return nil
}

func (s *memStorage) Health(context.Context) error { return nil }
func (s *memStorage) Close() error                 { return nil }

type notifier struct {
	got []*timeseries.Aligned
}

func (n *notifier) GrowthUpdated(a *timeseries.Aligned) { n.got = append(n.got, a) }

func TestProcessorChunks(t *testing.T) {
	store := &memStorage{}
	m := newFakeMetrics()
	p, err := NewSnapshotProcessor(nil, store, m, BackendClickHouse, 2, time.Second)
	require.NoError(t, err)

	snaps := make([]*models.FollowerSnapshot, 5)
	for i := range snaps {
		snaps[i] = &models.FollowerSnapshot{Account: "A", Date: "2024-01-01", Followers: int64(i)}
	}
	require.NoError(t, p.ProcessBatch(context.Background(), snaps))
	assert.Equal(t, 3, store.batches)
	assert.Equal(t, 5, m.routed[BackendClickHouse])

	store.err = errors.New("ch down")
	assert.Error(t, p.ProcessBatch(context.Background(), snaps[:1]))
	assert.Equal(t, 1, m.errors["process_batch"])
}

func TestProcessorValidatesBackend(t *testing.T) {
	_, err := NewSnapshotProcessor(nil, nil, newFakeMetrics(), BackendKafka, 10, 0)
	assert.Error(t, err)
	_, err = NewSnapshotProcessor(nil, &memStorage{}, newFakeMetrics(), "s3", 10, 0)
	assert.Error(t, err)
}

func TestCollectorPoll(t *testing.T) {
	store := &memStorage{}
	m := newFakeMetrics()
	proc, err := NewSnapshotProcessor(nil, store, m, BackendClickHouse, 100, 0)
	require.NoError(t, err)
	pipe, err := mid.NewSnapshotPipeline(proc, m)
	require.NoError(t, err)
	n := &notifier{}
	c := NewSnapshotCollector(growthSource(), pipe, m, n, time.Minute, nil)
	observed := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return observed }

	got, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Len(t, store.rows, 3)
	assert.Equal(t, observed, store.rows[0].ObservedAt)
	assert.Equal(t, map[string]int64{"A": 110, "B": 50}, m.latest)
	require.Len(t, n.got, 1)

	// unchanged data is not archived twice
	got, err = c.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Len(t, store.rows, 3)
}

func TestCollectorPollUpstreamError(t *testing.T) {
	src := growthSource()
	src.GrowthFn = func(context.Context) ([]timeseries.Series, error) { return nil, errUpstream }
	m := newFakeMetrics()
	pipe, err := mid.NewSnapshotPipeline(&memStorageProc{}, m)
	require.NoError(t, err)

	_, err = NewSnapshotCollector(src, pipe, m, nil, time.Minute, nil).Poll(context.Background())
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, 1, m.errors["poll"])
}

type memStorageProc struct{}

func (memStorageProc) ProcessBatch(context.Context, []*models.FollowerSnapshot) error { return nil }

func TestCollectorRunStopsOnCancel(t *testing.T) {
	m := newFakeMetrics()
	pipe, err := mid.NewSnapshotPipeline(memStorageProc{}, m)
	require.NoError(t, err)
	c := NewSnapshotCollector(growthSource(), pipe, m, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, c.Run(ctx))
}

func TestFlatten(t *testing.T) {
	a, err := timeseries.Align([]timeseries.Series{
		{Name: "A", Data: []timeseries.Sample{{Date: "2024-01-02", Followers: 2}, {Date: "2024-01-01", Followers: 1}}},
		{Name: "B", Data: []timeseries.Sample{{Date: "2024-01-02", Followers: 9}}},
	})
	require.NoError(t, err)

	snaps := Flatten(a, time.Unix(0, 0))
	require.Len(t, snaps, 3)
	assert.Equal(t, "2024-01-01", snaps[0].Date)
	assert.Equal(t, "A", snaps[1].Account)
	assert.Equal(t, "B", snaps[2].Account)
}

func TestKafkaSnapshotsHandler(t *testing.T) {
	store := &memStorage{}
	m := newFakeMetrics()
	h := NewKafkaSnapshotsHandler("gapsight.snapshots", store, m)
	assert.Equal(t, "gapsight.snapshots", h.Topic())

	payload, err := json.Marshal(models.FollowerSnapshot{Account: "A", Date: "2024-01-01", Followers: 3, ObservedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), payload))
	assert.Len(t, store.rows, 1)
	assert.Equal(t, 1, m.routed[BackendClickHouse])

	var he *pkgkafka.HookError
	err = h.Handle(context.Background(), []byte("{"))
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_DECODE", he.Code)

	err = h.Handle(context.Background(), []byte(`{"account":"A","date":"yesterday","followers":1}`))
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_INVALID_SNAPSHOT", he.Code)

	store.err = errors.New("ch down")
	err = h.Handle(context.Background(), payload)
	assert.Error(t, err)
	assert.False(t, errors.As(err, &he))
}
