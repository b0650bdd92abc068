// Package cache memoizes computed results for a bounded time.
//
// Keys are colon-joined tuples built with Key. Entries expire lazily: a
// lookup that finds an entry at or past its TTL removes it and reports a
// miss. There is no background sweep.
package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type item struct {
	data      interface{}
	createdAt time.Time
	ttl       time.Duration
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]item
	// gen is bumped by every invalidation so fills started before it
	// cannot store results computed from data that has since changed.
	gen    uint64
	flight singleflight.Group
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]item),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key joins a category and path components into a cache key. ':' and '\'
// inside components are escaped so component boundaries stay unambiguous.
func Key(category string, parts ...string) string {
	var b strings.Builder
	b.WriteString(category)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(escape(p))
	}
	return b.String()
}

func escape(s string) string {
	if !strings.ContainsAny(s, `:\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `:`, `\:`)
}

func category(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Get returns the stored data, or false when absent or stale.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	it, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		cacheMisses.WithLabelValues(category(key)).Inc()
		return nil, false
	}
	if c.now().Sub(it.createdAt) >= it.ttl {
		c.mu.Lock()
		// Only drop it if nobody replaced it in the meantime.
		if cur, ok := c.entries[key]; ok && cur.createdAt.Equal(it.createdAt) {
			delete(c.entries, key)
			cacheEvictions.WithLabelValues(category(key), "expired").Inc()
		}
		c.mu.Unlock()
		cacheMisses.WithLabelValues(category(key)).Inc()
		return nil, false
	}
	cacheHits.WithLabelValues(category(key)).Inc()
	return it.data, true
}

// Set stores data under key for ttl.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = item{data: data, createdAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// setIfGen stores data only if no invalidation happened since gen was read.
func (c *Cache) setIfGen(key string, data interface{}, ttl time.Duration, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = item{data: data, createdAt: c.now(), ttl: ttl}
	return true
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	return c.invalidate(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// InvalidatePath removes the entry at key and every entry below it, i.e.
// keys equal to key or starting with key + ":". Sibling keys that merely
// share a string prefix are kept.
func (c *Cache) InvalidatePath(key string) int {
	below := key + ":"
	return c.invalidate(func(k string) bool { return k == key || strings.HasPrefix(k, below) })
}

func (c *Cache) invalidate(match func(string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	n := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			cacheEvictions.WithLabelValues(category(k), "invalidated").Inc()
			n++
		}
	}
	return n
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.gen++
	n := len(c.entries)
	c.entries = make(map[string]item)
	c.mu.Unlock()
	cacheEvictions.WithLabelValues("all", "cleared").Add(float64(n))
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value at key, or runs load, caches its result
// for ttl and returns it. Concurrent misses on the same key share one load.
// A load that overlaps an invalidation is returned but not cached.
//
// The shared load keeps ctx's values but not its cancellation, so one caller
// giving up does not fail the others. Each caller still returns ctx.Err() as
// soon as its own ctx is done.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	gen := c.generation()
	loadCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		t, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.setIfGen(key, t, ttl, gen)
		return t, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
