package fetchcache

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/viewkit/cachekey"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/querystate"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func pageKey(resource string, page int) cachekey.Key {
	return cachekey.Resolve(resource, querystate.Descriptor{Page: page})
}

// counting returns a loader producing "<resource>#<page>/<call>" and its
// call counter.
func counting() (Loader[string], *atomic.Int32) {
	var calls atomic.Int32
	return func(_ context.Context, key cachekey.Key) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("%s#%d/%d", key.Resource(), key.Page(), n), nil
	}, &calls
}

func failing(err error) (Loader[string], *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context, cachekey.Key) (string, error) {
		calls.Add(1)
		return "", err
	}, &calls
}

// gated returns a loader that blocks until release is closed, and a channel
// closed when the loader is first entered.
func gated(value string) (loader Loader[string], entered, release chan struct{}, calls *atomic.Int32) {
	entered = make(chan struct{})
	release = make(chan struct{})
	calls = &atomic.Int32{}
	var once sync.Once
	loader = func(context.Context, cachekey.Key) (string, error) {
		calls.Add(1)
		once.Do(func() { close(entered) })
		<-release
		return value, nil
	}
	return loader, entered, release, calls
}

func newTestCache(t *testing.T, cfg Config, opts ...Option[string]) (*Cache[string], *testClock) {
	t.Helper()
	clock := newTestClock()
	opts = append([]Option[string]{WithClock[string](clock.Now)}, opts...)
	return New[string](cfg, opts...), clock
}

func TestCache_GetLoadsThenServesFresh(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	loader, calls := counting()
	key := pageKey("bookings", 1)

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), key, loader)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "bookings#1/1" {
			t.Fatalf("expected first load value, got %q", v)
		}
	}
	c.Wait()
	if calls.Load() != 1 {
		t.Errorf("expected 1 load, got %d", calls.Load())
	}
	e, ok := c.Peek(key)
	if !ok || e.Status != StatusFresh {
		t.Errorf("expected fresh entry, got %+v", e)
	}
}

func TestCache_DeduplicatesConcurrentLoads(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	loader, entered, release, calls := gated("page")
	key := pageKey("bookings", 2)

	const readers = 10
	var wg sync.WaitGroup
	results := make([]string, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), key, loader)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}

	<-entered
	c.Prefetch(context.Background(), key, loader)
	close(release)
	wg.Wait()
	c.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single shared load, got %d", calls.Load())
	}
	for i, v := range results {
		if v != "page" {
			t.Errorf("reader %d got %q", i, v)
		}
	}
}

func TestCache_StaleWhileRevalidate(t *testing.T) {
	c, clock := newTestCache(t, Config{StaleTime: time.Minute})
	loader, calls := counting()
	key := pageKey("cabins", 1)

	if _, err := c.Get(context.Background(), key, loader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(2 * time.Minute)

	v, err := c.Get(context.Background(), key, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "cabins#1/1" {
		t.Fatalf("stale read must return the cached value immediately, got %q", v)
	}

	c.Wait()
	if calls.Load() != 2 {
		t.Fatalf("expected a background refetch, got %d loads", calls.Load())
	}
	e, _ := c.Peek(key)
	if e.Status != StatusFresh || e.Value != "cabins#1/2" {
		t.Errorf("expected refreshed entry, got %+v", e)
	}
}

func TestCache_ZeroStaleTimeRevalidatesEveryRead(t *testing.T) {
	c, _ := newTestCache(t, Config{})
	loader, calls := counting()
	key := pageKey("cabins", 1)

	c.Get(context.Background(), key, loader)
	c.Get(context.Background(), key, loader)
	c.Wait()
	if calls.Load() != 2 {
		t.Errorf("expected 2 loads, got %d", calls.Load())
	}
}

func TestCache_LoadFailure(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	cause := stderrors.New("connection refused")
	loader, calls := failing(cause)
	key := pageKey("bookings", 1)

	_, err := c.Get(context.Background(), key, loader)
	if !errors.HasCode(err, errors.ErrCodeLoadFailure) {
		t.Fatalf("expected LOAD_FAILURE, got %v", err)
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("expected cause in chain, got %v", err)
	}
	e, _ := c.Peek(key)
	if e.Status != StatusError || e.HasValue {
		t.Errorf("expected error entry without value, got %+v", e)
	}

	// no automatic retry; the next read re-attempts
	c.Wait()
	if calls.Load() != 1 {
		t.Fatalf("expected no retry, got %d loads", calls.Load())
	}
	ok, _ := counting()
	v, err := c.Get(context.Background(), key, ok)
	if err != nil || v != "bookings#1/1" {
		t.Fatalf("expected recovery on next read, got %q, %v", v, err)
	}
}

func TestCache_FailedReloadKeepsValue(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	key := pageKey("bookings", 1)
	c.Set(key, "old")
	c.InvalidateKey(key)

	loader, _ := failing(stderrors.New("boom"))
	c.Prefetch(context.Background(), key, loader)
	c.Wait()

	e, _ := c.Peek(key)
	if e.Value != "old" || e.Status != StatusStale || e.Err == nil {
		t.Fatalf("expected old value kept with error recorded, got %+v", e)
	}
	v, err := c.Get(context.Background(), key, loader)
	if err != nil || v != "old" {
		t.Fatalf("expected stale value served, got %q, %v", v, err)
	}
	c.Wait()
}

func TestCache_PrefetchSkipsFresh(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	key := pageKey("bookings", 2)
	c.Set(key, "fresh")

	loader, calls := counting()
	c.Prefetch(context.Background(), key, loader)
	c.Wait()

	if calls.Load() != 0 {
		t.Fatalf("prefetch must not reload a fresh entry, got %d loads", calls.Load())
	}
	if e, _ := c.Peek(key); e.Value != "fresh" {
		t.Errorf("fresh entry must be untouched, got %+v", e)
	}
}

func TestCache_PrefetchPopulates(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	loader, calls := counting()
	key := pageKey("bookings", 3)

	c.Prefetch(context.Background(), key, loader)
	c.Wait()

	v, err := c.Get(context.Background(), key, loader)
	if err != nil || v != "bookings#3/1" {
		t.Fatalf("expected prefetched value, got %q, %v", v, err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single load, got %d", calls.Load())
	}
}

func TestCache_PrefetchFailureIsSilent(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Cache[string], key cachekey.Key)
		want  Entry[string]
	}{
		{
			name:  "missing key records error",
			setup: func(*Cache[string], cachekey.Key) {},
			want:  Entry[string]{Status: StatusError},
		},
		{
			name: "stale value survives",
			setup: func(c *Cache[string], key cachekey.Key) {
				c.Set(key, "old")
				c.Invalidate(cachekey.ForResource(key.Resource()))
			},
			want: Entry[string]{Status: StatusStale, Value: "old", HasValue: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCache(t, Config{StaleTime: time.Minute})
			loader, calls := failing(stderrors.New("boom"))
			key := pageKey("bookings", 9)
			tt.setup(c, key)

			c.Prefetch(context.Background(), key, loader)
			c.Wait()

			if calls.Load() != 1 {
				t.Fatalf("expected one load, got %d", calls.Load())
			}
			e, ok := c.Peek(key)
			if !ok {
				t.Fatal("expected an entry")
			}
			if e.Status != tt.want.Status || e.HasValue != tt.want.HasValue || e.Value != tt.want.Value {
				t.Fatalf("got status=%v value=%q hasValue=%v, want %+v", e.Status, e.Value, e.HasValue, tt.want)
			}
			if e.Err == nil {
				t.Fatal("expected the failure to be recorded")
			}
		})
	}
}

func TestCache_WaitDuringPrefetch(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	loader, calls := counting()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for page := 1; page <= n; page++ {
			c.Prefetch(context.Background(), pageKey("bookings", page), loader)
		}
	}()
	go func() {
		defer wg.Done()
		for range n {
			c.Wait()
		}
	}()
	wg.Wait()
	c.Wait()

	if calls.Load() != n {
		t.Fatalf("expected %d loads, got %d", n, calls.Load())
	}
	for page := 1; page <= n; page++ {
		if e, ok := c.Peek(pageKey("bookings", page)); !ok || !e.HasValue {
			t.Fatalf("page %d not loaded: %+v", page, e)
		}
	}
}

func TestCache_WaitCoversLoadsStartedWhileWaiting(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	first, entered, releaseFirst, _ := gated("one")
	second, entered2, releaseSecond, _ := gated("two")

	c.Prefetch(context.Background(), pageKey("bookings", 1), first)
	<-entered

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	c.Prefetch(context.Background(), pageKey("bookings", 2), second)
	<-entered2
	close(releaseFirst)

	select {
	case <-done:
		t.Fatal("Wait returned with a load still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(releaseSecond)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
	if e, _ := c.Peek(pageKey("bookings", 2)); e.Value != "two" {
		t.Fatalf("expected second load landed, got %+v", e)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	c.Set(pageKey("bookings", 1), "b1")
	c.Set(pageKey("bookings", 2), "b2")
	c.Set(pageKey("cabins", 1), "c1")

	n := c.Invalidate(cachekey.ForResource("bookings"))
	if n != 2 {
		t.Fatalf("expected 2 invalidated, got %d", n)
	}

	tests := []struct {
		key  cachekey.Key
		want Status
	}{
		{pageKey("bookings", 1), StatusStale},
		{pageKey("bookings", 2), StatusStale},
		{pageKey("cabins", 1), StatusFresh},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			e, _ := c.Peek(tt.key)
			if e.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, e.Status)
			}
		})
	}

	if c.Invalidate(nil) != 0 {
		t.Error("nil predicate must match nothing")
	}
	if c.InvalidateKey(pageKey("settings", 1)) {
		t.Error("unknown key must report false")
	}
}

func TestCache_InvalidateDuringLoadLandsStale(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	loader, entered, release, _ := gated("before-mutation")
	key := pageKey("bookings", 1)

	done := make(chan string, 1)
	go func() {
		v, _ := c.Get(context.Background(), key, loader)
		done <- v
	}()

	<-entered
	if n := c.Invalidate(cachekey.ForResource("bookings")); n != 1 {
		t.Fatalf("expected the pending entry invalidated, got %d", n)
	}
	close(release)

	if v := <-done; v != "before-mutation" {
		t.Fatalf("unexpected value %q", v)
	}
	c.Wait()
	if e, _ := c.Peek(key); e.Status != StatusStale {
		t.Errorf("expected stale after invalidation during load, got %s", e.Status)
	}
}

func TestCache_CallerCancellationDoesNotCancelLoad(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute})
	loader, entered, release, _ := gated("late")
	key := pageKey("bookings", 4)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, key, loader)
		errc <- err
	}()

	<-entered
	cancel()
	if err := <-errc; !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	c.Wait()
	if e, _ := c.Peek(key); e.Status != StatusFresh || e.Value != "late" {
		t.Fatalf("abandoned load must still populate the cache, got %+v", e)
	}
}

func TestCache_LoaderSeesDetachedContext(t *testing.T) {
	c, _ := newTestCache(t, Config{StaleTime: time.Minute, LoadTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var loaderErr error
	loader := func(ctx context.Context, _ cachekey.Key) (string, error) {
		loaderErr = ctx.Err()
		return "ok", nil
	}
	c.Prefetch(ctx, pageKey("cabins", 1), loader)
	c.Wait()
	if loaderErr != nil {
		t.Fatalf("loader must not inherit caller cancellation, got %v", loaderErr)
	}
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, Config{StaleTime: time.Minute, GCTime: 5 * time.Minute})
	c.Set(pageKey("bookings", 1), "old")
	clock.Advance(4 * time.Minute)
	c.Set(pageKey("bookings", 2), "new")
	clock.Advance(2 * time.Minute)

	if n := c.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := c.Peek(pageKey("bookings", 1)); ok {
		t.Error("expected old entry evicted")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", c.Len())
	}
}

func TestCache_StartJanitorStops(t *testing.T) {
	c := New[string](Config{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	c.StartJanitor(ctx)
	cancel()
}

func TestCache_PersistentTier(t *testing.T) {
	store := NewMemoryStore[string]()
	c, _ := newTestCache(t, Config{StaleTime: time.Minute}, WithPersistent[string](store))
	key := pageKey("bookings", 1)

	if err := store.Save(context.Background(), key.String(), ptr("persisted"), 0); err != nil {
		t.Fatalf("save: %v", err)
	}

	loader, calls := counting()
	v, err := c.Get(context.Background(), key, loader)
	if err != nil || v != "persisted" {
		t.Fatalf("expected persisted value, got %q, %v", v, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("persisted hit must not call the loader, got %d", calls.Load())
	}
	if e, _ := c.Peek(key); e.Status != StatusStale {
		t.Fatalf("persisted value must be stale, got %s", e.Status)
	}

	// the next read revalidates and writes through
	c.Get(context.Background(), key, loader)
	c.Wait()
	got, _ := store.Load(context.Background(), key.String())
	if got == nil || *got != "bookings#1/1" {
		t.Fatalf("expected write-through of the reloaded value, got %v", got)
	}

	c.Invalidate(cachekey.ForResource("bookings"))
	if got, _ := store.Load(context.Background(), key.String()); got != nil {
		t.Errorf("invalidation must drop the persisted value, got %q", *got)
	}
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.GCTime != DefaultGCTime || cfg.SweepInterval != DefaultSweepInterval || cfg.PersistTTL != DefaultGCTime {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.StaleTime = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative stale time")
	}
}

func ptr[T any](v T) *T { return &v }
