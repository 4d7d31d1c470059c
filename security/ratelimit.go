package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/giantswarm/identity-store/internal/util"
)

const (
	// DefaultRateLimiterMaxEntries bounds the number of tracked identifiers.
	DefaultRateLimiterMaxEntries = 10000

	// DefaultRateLimiterIdleTimeout is how long an unused limiter is kept.
	DefaultRateLimiterIdleTimeout = 30 * time.Minute

	defaultRateLimiterCleanupInterval = 5 * time.Minute
)

// rateLimiterEntry tracks a rate limiter and its last access time
type rateLimiterEntry struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// Rate is the sustained number of events per second per identifier.
	Rate float64

	// Burst is the maximum burst per identifier.
	Burst int

	// MaxEntries bounds tracked identifiers; least recently used are evicted.
	// Zero uses DefaultRateLimiterMaxEntries.
	MaxEntries int

	// IdleTimeout removes limiters not used for this long. Zero uses the default.
	IdleTimeout time.Duration

	// Now is the time source. Defaults to time.Now.
	Now func() time.Time
}

// RateLimiter provides per-identifier rate limiting using a token bucket
// with LRU eviction to prevent unbounded memory growth.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*list.Element // identifier -> list element
	lruList     *list.List               // LRU list of *rateLimiterEntry
	limit       rate.Limit
	burst       int
	maxEntries  int
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once

	totalEvictions int64
}

// NewRateLimiter creates a new rate limiter and starts its idle cleanup loop.
// Call Stop when it is no longer needed.
func NewRateLimiter(cfg RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultRateLimiterMaxEntries
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultRateLimiterIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	rl := &RateLimiter{
		limiters:    make(map[string]*list.Element),
		lruList:     list.New(),
		limit:       rate.Limit(cfg.Rate),
		burst:       cfg.Burst,
		maxEntries:  cfg.MaxEntries,
		idleTimeout: cfg.IdleTimeout,
		now:         cfg.Now,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether an event for identifier may happen now.
func (rl *RateLimiter) Allow(identifier string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if elem, exists := rl.limiters[identifier]; exists {
		rl.lruList.MoveToFront(elem)
		entry := elem.Value.(*rateLimiterEntry)
		entry.lastAccess = now
		return entry.limiter.AllowN(now, 1)
	}

	if len(rl.limiters) >= rl.maxEntries {
		rl.evictLRU()
	}

	entry := &rateLimiterEntry{
		identifier: identifier,
		limiter:    rate.NewLimiter(rl.limit, rl.burst),
		lastAccess: now,
	}
	rl.limiters[identifier] = rl.lruList.PushFront(entry)

	return entry.limiter.AllowN(now, 1)
}

// evictLRU removes the least recently used entry.
// Must be called with mutex locked.
func (rl *RateLimiter) evictLRU() {
	elem := rl.lruList.Back()
	if elem == nil {
		return
	}

	entry := elem.Value.(*rateLimiterEntry)
	delete(rl.limiters, entry.identifier)
	rl.lruList.Remove(elem)
	rl.totalEvictions++

	rl.logger.Debug("Rate limiter LRU eviction",
		"identifier_hash", util.HashForLogging(entry.identifier),
		"total_evictions", rl.totalEvictions)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(defaultRateLimiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// Cleanup removes limiters idle for longer than the configured idle timeout.
// Returns the number of removed limiters.
func (rl *RateLimiter) Cleanup() int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	// The list is ordered by recency, so idle entries sit at the back.
	for elem := rl.lruList.Back(); elem != nil; {
		entry := elem.Value.(*rateLimiterEntry)
		if now.Sub(entry.lastAccess) <= rl.idleTimeout {
			break
		}
		prev := elem.Prev()
		delete(rl.limiters, entry.identifier)
		rl.lruList.Remove(elem)
		removed++
		elem = prev
	}

	if removed > 0 {
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.limiters))
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
