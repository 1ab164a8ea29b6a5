package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface. Values are stored as JSON.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// rawStore is implemented by the concrete layers so LayeredCache can move bytes between them.
type rawStore interface {
	getBytes(ctx context.Context, key string) ([]byte, error)
	setBytes(ctx context.Context, key string, data []byte, expiration time.Duration) error
}

// Observer is told about every GetOrLoad outcome.
type Observer interface {
	CacheResult(kind string, hit bool)
}

// GetOrLoad returns the cached value for key or calls load and caches its result.
// Cache failures never fail the call; only load errors are returned.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, obs Observer, load func(ctx context.Context) (T, error)) (T, error) {
	kind := KindOf(key)
	if c != nil {
		var cached T
		if err := c.Get(ctx, key, &cached); err == nil {
			if obs != nil {
				obs.CacheResult(kind, true)
			}
			return cached, nil
		}
	}
	if obs != nil {
		obs.CacheResult(kind, false)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil && ttl > 0 {
		_ = c.Set(ctx, key, v, ttl)
	}
	return v, nil
}

// GenerateKey joins a prefix and parameters with ':'.
func GenerateKey(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

// KindOf returns the first segment of a key, used as a metrics label.
func KindOf(key string) string {
	kind, _, _ := strings.Cut(key, ":")
	return kind
}

func encode(value interface{}) ([]byte, error) {
	if b, ok := value.([]byte); ok {
		return b, nil
	}
	return json.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	if b, ok := dest.(*[]byte); ok {
		*b = append((*b)[:0], data...)
		return nil
	}
	return json.Unmarshal(data, dest)
}
