// Package cache provides a generic in-memory cache with per-key single-flight
// computation, absolute or sliding expiration, and explicit invalidation.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/internal/util"
)

// DefaultTTL is used when a non-positive ttl is passed to GetOrCreate or Set
const DefaultTTL = 5 * time.Minute

// ComputeFunc produces the value for a missing key
type ComputeFunc[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	value     T
	ttl       time.Duration
	expiresAt time.Time
	cachedAt  time.Time
}

// flight marks a computation in progress. stale is set when the key is
// invalidated, overwritten or cleared before the computation finishes.
type flight struct {
	stale bool
}

// Cache is a concurrency-safe cache of values of type T keyed by string.
//
// An entry is never returned once its expiration has passed. Entries leave the
// cache early only through Invalidate, Clear, or capacity pressure when
// WithMaxEntries is set.
type Cache[T any] struct {
	mu       sync.RWMutex
	entries  map[string]*entry[T]
	inflight map[string]*flight
	group    singleflight.Group

	name       string
	sliding    bool
	maxEntries int
	defaultTTL time.Duration
	clock      func() time.Time
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// Option configures a Cache
type Option func(*settings)

type settings struct {
	name       string
	sliding    bool
	maxEntries int
	defaultTTL time.Duration
	clock      func() time.Time
	logger     *slog.Logger
	inst       *instrumentation.Instrumentation
}

// WithSlidingExpiration renews an entry's ttl on every hit
func WithSlidingExpiration() Option {
	return func(s *settings) { s.sliding = true }
}

// WithMaxEntries bounds the cache. When full, expired entries are dropped first,
// then the oldest entry. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxEntries = n
		}
	}
}

// WithDefaultTTL sets the ttl used when callers pass a non-positive ttl
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInstrumentation records hits and misses under the given cache name
func WithInstrumentation(inst *instrumentation.Instrumentation, name string) Option {
	return func(s *settings) {
		s.inst = inst
		if name != "" {
			s.name = name
		}
	}
}

// New creates an empty cache
func New[T any](opts ...Option) *Cache[T] {
	s := settings{
		name:       "default",
		defaultTTL: DefaultTTL,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	c := &Cache[T]{
		entries:    make(map[string]*entry[T]),
		inflight:   make(map[string]*flight),
		name:       s.name,
		sliding:    s.sliding,
		maxEntries: s.maxEntries,
		defaultTTL: s.defaultTTL,
		clock:      s.clock,
		logger:     s.logger,
	}
	if s.inst != nil {
		c.metrics = s.inst.Metrics()
	}
	return c
}

// GetOrCreate returns the live value for key, or computes, stores and returns it.
//
// Concurrent misses for the same key share one computation; every waiter gets
// its result. The computation is not cancelled with the caller that started
// it; a caller whose ctx is done stops waiting and gets ctx.Err(). A failed
// computation stores nothing, so the next call recomputes.
// If the key is invalidated while the computation runs, the result is still
// returned to its waiters but is not stored.
func (c *Cache[T]) GetOrCreate(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc[T]) (T, error) {
	if v, ok := c.lookup(key); ok {
		c.record(ctx, true)
		return v, nil
	}
	c.record(ctx, false)

	// The flight outlives any single caller, so it drops cancellation but keeps
	// context values such as the trace span.
	flightCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Double-check cache (another flight might have filled it while we waited)
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		f := &flight{}
		c.mu.Lock()
		c.inflight[key] = f
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			if c.inflight[key] == f {
				delete(c.inflight, key)
			}
			c.mu.Unlock()
		}()

		v, err := compute(flightCtx)
		if err != nil {
			c.logger.Debug("Cache computation failed",
				"cache", c.name,
				"key", util.TruncateKey(key),
				"error", err)
			return nil, err
		}

		c.mu.Lock()
		if !f.stale {
			c.storeLocked(key, v, ttl)
		} else {
			c.logger.Debug("Discarding result invalidated during computation",
				"cache", c.name,
				"key", util.TruncateKey(key))
		}
		c.mu.Unlock()

		return v, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	if res.Err != nil {
		var zero T
		return zero, res.Err
	}
	if res.Shared {
		c.logger.Debug("Shared cache computation", "cache", c.name, "key", util.TruncateKey(key))
	}

	v, _ := res.Val.(T)
	return v, nil
}

// Get returns the live value for key without computing
func (c *Cache[T]) Get(key string) (T, bool) {
	return c.lookup(key)
}

// Set stores value under key, replacing any entry and overriding an in-flight computation
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f := c.inflight[key]; f != nil {
		f.stale = true
	}
	c.storeLocked(key, value, ttl)
}

// Invalidate removes key. Subsequent calls recompute, and a computation already
// running for key does not store its result.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	if f := c.inflight[key]; f != nil {
		f.stale = true
	}
	c.mu.Unlock()

	c.group.Forget(key)
}

// Clear removes every entry and marks every running computation stale
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[T])
	keys := make([]string, 0, len(c.inflight))
	for key, f := range c.inflight {
		f.stale = true
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.group.Forget(key)
	}
}

// Len returns the number of stored entries, including expired entries not yet removed
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CleanupExpired removes all expired entries and returns how many were removed
func (c *Cache[T]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	removed := 0

	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// lookup returns the value for key if it is live, renewing it when sliding
func (c *Cache[T]) lookup(key string) (T, bool) {
	var zero T

	if !c.sliding {
		c.mu.RLock()
		defer c.mu.RUnlock()

		e, ok := c.entries[key]
		if !ok || !c.clock().Before(e.expiresAt) {
			return zero, false
		}
		return e.value, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	now := c.clock()
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	e.expiresAt = now.Add(e.ttl)
	return e.value, true
}

// storeLocked stores an entry. Caller must hold write lock.
func (c *Cache[T]) storeLocked(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	now := c.clock()
	c.entries[key] = &entry[T]{
		value:     value,
		ttl:       ttl,
		expiresAt: now.Add(ttl),
		cachedAt:  now,
	}
}

// evictLocked drops expired entries, or the oldest entry when none expired.
// Caller must hold write lock.
//
// Note: This is O(n) eviction, acceptable for the small caches this package serves.
func (c *Cache[T]) evictLocked() {
	now := c.clock()
	var oldestKey string
	var oldestTime time.Time
	expired := 0

	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			expired++
			continue
		}
		if oldestKey == "" || e.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.cachedAt
		}
	}

	if expired == 0 && oldestKey != "" {
		delete(c.entries, oldestKey)
		c.logger.Debug("Evicted oldest cache entry", "cache", c.name, "key", util.TruncateKey(oldestKey))
	}
}

func (c *Cache[T]) record(ctx context.Context, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(ctx, c.name, hit)
	}
}
