package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Date      string `json:"date"`
	Followers int64  `json:"followers"`
}

type countingObserver struct{ hits, misses int }

func (o *countingObserver) CacheResult(_ string, hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	in := []sample{{"2024-01-01", 100}}
	require.NoError(t, mc.Set(ctx, "followers", in, time.Minute))

	var out []sample
	require.NoError(t, mc.Get(ctx, "followers", &out))
	assert.Equal(t, in, out)

	require.NoError(t, mc.Set(ctx, "png", []byte{1, 2, 3}, time.Minute))
	var raw []byte
	require.NoError(t, mc.Get(ctx, "png", &raw))
	assert.Equal(t, []byte{1, 2, 3}, raw)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))
	now = now.Add(2 * time.Second)

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.NoError(t, mc.Get(ctx, "c", &v))
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	for _, k := range []string{"growth:last", "growth:first", "summary"} {
		require.NoError(t, mc.Set(ctx, k, 1, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, "growth:*"))
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	ok, err := mc.TryLock(ctx, "lock:refresh", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock:refresh", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:refresh"))
	ok, _ = mc.TryLock(ctx, "lock:refresh", time.Minute)
	assert.True(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	obs := &countingObserver{}
	calls := 0
	load := func(context.Context) ([]sample, error) {
		calls++
		return []sample{{"2024-01-08", 120}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrLoad(ctx, mc, GenerateKey("followers"), time.Minute, obs, load)
		require.NoError(t, err)
		assert.Equal(t, int64(120), got[0].Followers)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, 1, obs.misses)

	boom := errors.New("boom")
	_, err := GetOrLoad(ctx, mc, "summary", time.Minute, nil, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	got, err := GetOrLoad[int](ctx, nil, "x", time.Minute, nil, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "growth:last:2", GenerateKey("growth", "last", 2))
	assert.Equal(t, "growth", KindOf("growth:last"))
	assert.Equal(t, "summary", KindOf("summary"))
}
