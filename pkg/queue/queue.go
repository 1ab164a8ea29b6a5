package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher enqueues messages for a registered job type.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

type QueueConfig struct {
	Name       string        // key namespace, e.g. gapsight-jobs
	Workers    int           // consumer goroutines
	RetryLimit int           // retries before the dead-letter list
	RetryDelay time.Duration // delay before a failed message is retried
}

type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParsePayload decodes a job payload into T. Payloads arrive as json.RawMessage
// from Redis, or as the original value when a job is called directly.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case nil:
		return new(T), nil
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		return unmarshalPayload[T](p)
	case []byte:
		return unmarshalPayload[T](p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("invalid payload type %T: %w", payload, err)
		}
		return unmarshalPayload[T](b)
	}
}

func unmarshalPayload[T any](b []byte) (*T, error) {
	var out T
	if len(b) == 0 || string(b) == "null" {
		return &out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, nil
}
