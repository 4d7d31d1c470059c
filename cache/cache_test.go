package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/internal/testutil"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func constant(v string, calls *atomic.Int32) ComputeFunc[string] {
	return func(context.Context) (string, error) {
		calls.Add(1)
		return v, nil
	}
}

func TestCache_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	c := New[string]()

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		v, err := c.GetOrCreate(ctx, "k", time.Minute, constant("value", &calls))
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if v != "value" {
			t.Errorf("GetOrCreate() = %q, want value", v)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
}

func TestCache_GetOrCreate_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := New[int]()

	const callers = 50
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, callers)
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			v, err := c.GetOrCreate(ctx, "shared", time.Minute, compute)
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
			}
			results[i] = v
		}(i)
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("caller %d got %d, want 42", i, v)
		}
	}
}

func TestCache_GetOrCreate_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := New[string]()

	boom := errors.New("boom")
	_, err := c.GetOrCreate(ctx, "k", time.Minute, func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate() error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed compute, want 0", c.Len())
	}

	var calls atomic.Int32
	v, err := c.GetOrCreate(ctx, "k", time.Minute, constant("recovered", &calls))
	if err != nil || v != "recovered" {
		t.Errorf("GetOrCreate() after failure = %q, %v", v, err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute called %d times, want 1", calls.Load())
	}
}

func TestCache_Expiration(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewMockTime(testEpoch)
	c := New[string](WithClock(clock.Now))

	var calls atomic.Int32
	_, _ = c.GetOrCreate(ctx, "k", time.Minute, constant("v", &calls))

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry should be live before its ttl")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry returned at its expiration")
	}

	_, _ = c.GetOrCreate(ctx, "k", time.Minute, constant("v", &calls))
	if calls.Load() != 2 {
		t.Errorf("compute called %d times, want 2", calls.Load())
	}
}

func TestCache_SlidingExpiration(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	c := New[string](WithClock(clock.Now), WithSlidingExpiration())

	c.Set("k", "v", time.Minute)

	for i := 0; i < 5; i++ {
		clock.Advance(45 * time.Second)
		if _, ok := c.Get("k"); !ok {
			t.Fatalf("sliding entry expired after access %d", i)
		}
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("sliding entry should expire after a full idle ttl")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expired sliding entry should be removed", c.Len())
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	c := New[string](WithClock(clock.Now), WithDefaultTTL(time.Second))

	c.Set("k", "v", 0)
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should use the default ttl")
	}
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := New[string]()

	var calls atomic.Int32
	_, _ = c.GetOrCreate(ctx, "k", time.Minute, constant("v1", &calls))

	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Get() after Invalidate() should miss")
	}

	v, _ := c.GetOrCreate(ctx, "k", time.Minute, constant("v2", &calls))
	if v != "v2" {
		t.Errorf("GetOrCreate() = %q, want v2", v)
	}

	c.Invalidate("absent")
}

func TestCache_InvalidateDuringCompute(t *testing.T) {
	ctx := context.Background()
	c := New[string]()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string)

	go func() {
		v, _ := c.GetOrCreate(ctx, "k", time.Minute, func(context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		done <- v
	}()

	<-started
	c.Invalidate("k")
	close(release)

	if v := <-done; v != "stale" {
		t.Errorf("waiter got %q, want stale", v)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("result computed before invalidation must not be stored")
	}

	var calls atomic.Int32
	v, _ := c.GetOrCreate(ctx, "k", time.Minute, constant("fresh", &calls))
	if v != "fresh" || calls.Load() != 1 {
		t.Errorf("GetOrCreate() = %q (calls %d), want fresh computed once", v, calls.Load())
	}
}

func TestCache_GetOrCreate_StarterCancelled(t *testing.T) {
	c := New[string]()

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-release:
			return "value", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	starterCtx, cancel := context.WithCancel(context.Background())
	starterErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrCreate(starterCtx, "k", time.Minute, compute)
		starterErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		v, err := c.GetOrCreate(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
			return "second computation", nil
		})
		waiter <- result{v, err}
	}()

	cancel()
	if err := <-starterErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("starter error = %v, want context.Canceled", err)
	}

	// Give the waiter time to join the running computation
	time.Sleep(20 * time.Millisecond)
	close(release)

	got := <-waiter
	if got.err != nil {
		t.Fatalf("waiter error = %v, want nil", got.err)
	}
	if got.v != "value" {
		t.Errorf("waiter got %q, want value", got.v)
	}
	if v, ok := c.Get("k"); !ok || v != "value" {
		t.Errorf("Get() = %q, %v; want value stored", v, ok)
	}
}

func TestCache_GetOrCreate_ComputeKeepsContextValues(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "trace")
	c := New[string]()

	v, err := c.GetOrCreate(ctx, "k", time.Minute, func(ctx context.Context) (string, error) {
		s, _ := ctx.Value(ctxKey{}).(string)
		return s, nil
	})
	if err != nil || v != "trace" {
		t.Errorf("GetOrCreate() = %q, %v; want trace", v, err)
	}
}

func TestCache_SetDuringCompute(t *testing.T) {
	ctx := context.Background()
	c := New[string]()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = c.GetOrCreate(ctx, "k", time.Minute, func(context.Context) (string, error) {
			close(started)
			<-release
			return "computed", nil
		})
	}()

	<-started
	c.Set("k", "explicit", time.Minute)
	close(release)
	<-done

	if v, _ := c.Get("k"); v != "explicit" {
		t.Errorf("Get() = %q, explicit Set must win over a running computation", v)
	}
}

func TestCache_Clear(t *testing.T) {
	c := New[int]()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", c.Len())
	}
}

func TestCache_MaxEntries(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	c := New[int](WithClock(clock.Now), WithMaxEntries(2))

	c.Set("a", 1, time.Minute)
	clock.Advance(time.Second)
	c.Set("b", 2, time.Minute)
	clock.Advance(time.Second)
	c.Set("c", 3, time.Minute)

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should be evicted")
	}

	// Updating an existing key never evicts
	c.Set("b", 20, time.Minute)
	if _, ok := c.Get("c"); !ok {
		t.Error("overwrite evicted another entry")
	}
}

func TestCache_CleanupExpired(t *testing.T) {
	clock := testutil.NewMockTime(testEpoch)
	c := New[int](WithClock(clock.Now))

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	clock.Advance(time.Minute)

	if removed := c.CleanupExpired(); removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_Metrics(t *testing.T) {
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	inst, err := instrumentation.New(instrumentation.Config{Enabled: true, MetricReader: reader})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(ctx) }()

	c := New[string](WithInstrumentation(inst, "test"))
	var calls atomic.Int32
	_, _ = c.GetOrCreate(ctx, "k", time.Minute, constant("v", &calls))
	_, _ = c.GetOrCreate(ctx, "k", time.Minute, constant("v", &calls))
	_, _ = c.GetOrCreate(ctx, "k", time.Minute, constant("v", &calls))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}

	if totals["cache.hits"] != 2 || totals["cache.misses"] != 1 {
		t.Errorf("hits = %d, misses = %d; want 2 and 1", totals["cache.hits"], totals["cache.misses"])
	}
}
