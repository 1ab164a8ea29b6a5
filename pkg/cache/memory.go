package cache

import (
	"context"
	"path"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache implements Service in process with LRU eviction and per-key expiry.
type MemoryCache struct {
	items      *lru.Cache[string, memoryItem]
	defaultTTL time.Duration
	lockMu     sync.Mutex
	now        func() time.Time
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:    1000,
		DefaultTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	// lru.New only fails for a non-positive size.
	items, _ := lru.New[string, memoryItem](cfg.MaxSize)
	return &MemoryCache{
		items:      items,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

func (mc *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return mc.setBytes(ctx, key, data, expiration)
}

func (mc *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := mc.getBytes(ctx, key)
	if err != nil {
		return err
	}
	return decode(data, dest)
}

func (mc *MemoryCache) setBytes(_ context.Context, key string, data []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	mc.items.Add(key, memoryItem{data: data, expireAt: mc.now().Add(expiration)})
	return nil
}

func (mc *MemoryCache) getBytes(_ context.Context, key string) ([]byte, error) {
	item, ok := mc.items.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if item.expired(mc.now()) {
		mc.items.Remove(key)
		return nil, ErrCacheMiss
	}
	return item.data, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.items.Remove(key)
	}
	return nil
}

// DeleteByPattern removes keys matching a glob pattern ("summary:*").
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	for _, key := range mc.items.Keys() {
		if ok, _ := path.Match(pattern, key); ok {
			mc.items.Remove(key)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.lockMu.Lock()
	defer mc.lockMu.Unlock()

	now := mc.now()
	if item, ok := mc.items.Peek(key); ok && !item.expired(now) {
		return false, nil
	}
	mc.items.Add(key, memoryItem{data: []byte("locked"), expireAt: now.Add(ttl)})
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

func (mc *MemoryCache) Len() int {
	return mc.items.Len()
}

func (mc *MemoryCache) Close() error {
	mc.items.Purge()
	return nil
}
