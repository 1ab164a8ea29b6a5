package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(2, time.Minute)

	_, ok, err := c.GetBytes(ctx, "growth:960x480")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetBytes(ctx, "a", []byte("a"), 0))
	require.NoError(t, c.SetBytes(ctx, "b", []byte("b"), 0))
	require.NoError(t, c.SetBytes(ctx, "c", []byte("c"), 0))
	assert.Equal(t, 2, c.Len())

	_, ok, _ = c.GetBytes(ctx, "a")
	assert.False(t, ok, "oldest entry is evicted")
	b, ok, _ := c.GetBytes(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, []byte("c"), b)
}

func TestLRUCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(4, 20*time.Millisecond)
	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), 0))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.GetBytes(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
