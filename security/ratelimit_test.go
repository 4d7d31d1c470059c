package security

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 3, Now: clock.Now}, nil)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("alice") {
			t.Fatalf("Allow() #%d = false, want true within burst", i+1)
		}
	}
	if rl.Allow("alice") {
		t.Error("Allow() should be denied after burst is exhausted")
	}

	// Other identifiers are independent
	if !rl.Allow("bob") {
		t.Error("Allow() for a different identifier should be allowed")
	}

	clock.Advance(time.Second)
	if !rl.Allow("alice") {
		t.Error("Allow() should be allowed again after tokens refill")
	}
}

func TestRateLimiter_LRUEviction(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, MaxEntries: 3}, nil)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		rl.Allow(fmt.Sprintf("user-%d", i))
	}

	if got := rl.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	if rl.totalEvictions != 2 {
		t.Errorf("totalEvictions = %d, want 2", rl.totalEvictions)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, IdleTimeout: time.Minute, Now: clock.Now}, nil)
	defer rl.Stop()

	rl.Allow("old")
	clock.Advance(2 * time.Minute)
	rl.Allow("fresh")

	if removed := rl.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() removed = %d, want 1", removed)
	}
	if got := rl.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1}, nil)
	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 1000}, nil)
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rl.Allow(fmt.Sprintf("user-%d", i%5))
			}
		}(i)
	}
	wg.Wait()

	if got := rl.Len(); got != 5 {
		t.Errorf("Len() = %d, want 5", got)
	}
}
