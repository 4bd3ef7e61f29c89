package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// foreverTTL applies when Set is called without an expiration.
const foreverTTL = 7 * 24 * time.Hour

type entry struct {
	val     []byte
	expires time.Time
	touched time.Time
}

// MemoryCache is a bounded in-process Service. Values are encoded the same
// way RedisCache encodes them.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxSize int
	now     func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*entry),
		maxSize: cfg.MaxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go mc.sweep(cfg.CleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	mc.put(key, data, expiration)
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e := mc.live(key)
	if e != nil {
		e.touched = mc.now()
	}
	mc.mu.Unlock()

	if e == nil {
		return ErrCacheMiss
	}
	return decode(e.val, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	for _, k := range keys {
		delete(mc.entries, k)
	}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for k := range mc.entries {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return err
		}
		if ok {
			delete(mc.entries, k)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.live(key) != nil {
		return false, nil
	}
	mc.put(key, []byte("locked"), ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stop) })
	return nil
}

// put and live require mu.
func (mc *MemoryCache) put(key string, data []byte, ttl time.Duration) {
	if _, ok := mc.entries[key]; !ok && len(mc.entries) >= mc.maxSize {
		mc.evictOldest()
	}
	if ttl <= 0 {
		ttl = foreverTTL
	}
	now := mc.now()
	mc.entries[key] = &entry{val: data, expires: now.Add(ttl), touched: now}
}

func (mc *MemoryCache) live(key string) *entry {
	e, ok := mc.entries[key]
	if !ok {
		return nil
	}
	if !mc.now().Before(e.expires) {
		delete(mc.entries, key)
		return nil
	}
	return e
}

func (mc *MemoryCache) evictOldest() {
	var victim string
	var oldest time.Time
	for k, e := range mc.entries {
		if victim == "" || e.touched.Before(oldest) {
			victim, oldest = k, e.touched
		}
	}
	delete(mc.entries, victim)
}

func (mc *MemoryCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-t.C:
		}
		mc.mu.Lock()
		now := mc.now()
		for k, e := range mc.entries {
			if !now.Before(e.expires) {
				delete(mc.entries, k)
			}
		}
		mc.mu.Unlock()
	}
}
