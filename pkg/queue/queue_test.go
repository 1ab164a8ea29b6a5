package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshPayload struct {
	Reason string `json:"reason"`
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[refreshPayload](json.RawMessage(`{"reason":"manual"}`))
	require.NoError(t, err)
	assert.Equal(t, "manual", p.Reason)

	p, err = ParsePayload[refreshPayload](refreshPayload{Reason: "direct"})
	require.NoError(t, err)
	assert.Equal(t, "direct", p.Reason)

	p, err = ParsePayload[refreshPayload](map[string]interface{}{"reason": "map"})
	require.NoError(t, err)
	assert.Equal(t, "map", p.Reason)

	p, err = ParsePayload[refreshPayload](nil)
	require.NoError(t, err)
	assert.Empty(t, p.Reason)

	_, err = ParsePayload[refreshPayload](json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestQueueKeysAndNotRunning(t *testing.T) {
	q := NewRedisQueue(nil, QueueConfig{Name: "jobs"}, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	assert.Equal(t, "gapsight:queue:jobs:messages", q.queueKey())
	assert.Equal(t, "gapsight:queue:jobs:retry", q.retryKey())
	assert.Equal(t, "gapsight:queue:jobs:dlq", q.deadLetterKey())

	err := q.Enqueue(context.Background(), "insights.refresh", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.NoError(t, q.Stop(context.Background()))
}
