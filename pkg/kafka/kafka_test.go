package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = encodeValue(map[string]int{"followers": 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"followers":5}`, string(b))

	_, err = encodeValue(func() {})
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Gzip, parseCompression("gzip"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Snappy, parseCompression("bogus"))
}

func TestConstructorsRequireBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	_, err = NewConsumer(nil, nil, WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerGroupID("g"))
	assert.Error(t, err)
}

func TestHookChainStopsOnReject(t *testing.T) {
	var order []string
	chain := hookChain{
		HookFuncs{Before: func(context.Context, kafka.Message) error {
			order = append(order, "first")
			return Reject("ERR_SCHEMA", "bad payload")
		}},
		HookFuncs{Before: func(context.Context, kafka.Message) error {
			order = append(order, "second")
			return nil
		}},
	}

	err := chain.before(context.Background(), kafka.Message{})
	var he *HookError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "ERR_SCHEMA", he.Code)
	assert.Equal(t, []string{"first"}, order)

	// nil funcs are no-ops
	chain = hookChain{HookFuncs{}}
	assert.NoError(t, chain.before(context.Background(), kafka.Message{}))
	chain.after(context.Background(), kafka.Message{}, nil, time.Millisecond)
	chain.retry(context.Background(), kafka.Message{}, 1, errors.New("x"))
	chain.dlq(context.Background(), kafka.Message{}, errors.New("x"))
}
