package fetchcache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/kbukum/viewkit/cachekey"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
)

// Loader fetches the value of key from the remote store.
type Loader[V any] func(ctx context.Context, key cachekey.Key) (V, error)

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithPersistent adds a second tier consulted before the loader.
func WithPersistent[V any](p Persistent[V]) Option[V] {
	return func(c *Cache[V]) { c.persist = p }
}

// WithMetrics records cache metrics on m.
func WithMetrics[V any](m *observability.CacheMetrics) Option[V] {
	return func(c *Cache[V]) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger[V any](log *logger.Logger) Option[V] {
	return func(c *Cache[V]) {
		if log != nil {
			c.log = log.WithComponent("fetchcache")
		}
	}
}

// WithClock replaces time.Now.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache holds loaded values of type V keyed by cachekey.Key.
type Cache[V any] struct {
	cfg     Config
	persist Persistent[V]
	metrics *observability.CacheMetrics
	log     *logger.Logger
	now     func() time.Time

	group singleflight.Group

	// inflight counts started loads; idle is signalled when it drops to 0.
	flightMu sync.Mutex
	inflight int
	idle     *sync.Cond

	mu      sync.Mutex
	entries map[cachekey.Key]*entry[V]
}

// New creates a cache.
func New[V any](cfg Config, opts ...Option[V]) *Cache[V] {
	cfg.ApplyDefaults()
	c := &Cache[V]{
		cfg:     cfg,
		metrics: observability.NopCacheMetrics(),
		log:     logger.NewNop(),
		now:     time.Now,
		entries: make(map[cachekey.Key]*entry[V]),
	}
	c.idle = sync.NewCond(&c.flightMu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value of key. A cached value, fresh or stale, is returned
// immediately; a stale one also schedules a background refetch. Otherwise Get
// waits for a load shared with every other caller of the same key. A failed
// load is returned as a LOAD_FAILURE error. If ctx ends first, Get returns
// ctx.Err() and the load carries on.
func (c *Cache[V]) Get(ctx context.Context, key cachekey.Key, loader Loader[V]) (V, error) {
	var zero V

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.hasValue {
		now := c.now()
		e.lastAccess = now
		e.age(now, c.cfg.StaleTime)
		v, stale := e.value, e.status == StatusStale
		c.mu.Unlock()

		c.metrics.RecordHit(ctx, key.Resource())
		if stale {
			c.start(ctx, key, loader)
		}
		return v, nil
	}
	c.mu.Unlock()

	c.metrics.RecordMiss(ctx, key.Resource())
	select {
	case res := <-c.start(ctx, key, loader):
		if res.Err != nil {
			return zero, errors.LoadFailure(key.String(), res.Err)
		}
		v, _ := res.Val.(V)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Prefetch loads key in the background unless it already holds a fresh
// value. It never blocks on the load and never reports errors; a failed
// prefetch leaves any existing value untouched.
func (c *Cache[V]) Prefetch(ctx context.Context, key cachekey.Key, loader Loader[V]) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.age(c.now(), c.cfg.StaleTime)
		if (e.hasValue && e.status == StatusFresh) || e.loading {
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()

	c.metrics.RecordPrefetch(ctx, key.Resource())
	c.start(ctx, key, loader)
}

// Set stores v as a fresh value of key, as after a successful load.
func (c *Cache[V]) Set(key cachekey.Key, v V) {
	now := c.now()
	c.mu.Lock()
	e := c.entryLocked(key)
	e.value, e.hasValue, e.err = v, true, nil
	e.status = StatusFresh
	e.insertedAt, e.lastAccess = now, now
	c.mu.Unlock()
}

// Invalidate marks every entry whose resource matches pred as stale and
// returns how many matched. Loads already in flight for those entries land
// as stale. Matching keys are also dropped from the persistent tier.
func (c *Cache[V]) Invalidate(pred func(resource string) bool) int {
	if pred == nil {
		return 0
	}

	c.mu.Lock()
	var keys []cachekey.Key
	for k, e := range c.entries {
		if !pred(k.Resource()) {
			continue
		}
		e.gen++
		if e.status == StatusFresh {
			e.status = StatusStale
		}
		keys = append(keys, k)
	}
	c.mu.Unlock()

	ctx := context.Background()
	c.forget(ctx, keys)
	c.metrics.RecordInvalidation(ctx, len(keys))
	if len(keys) > 0 {
		c.log.Debug("entries invalidated", logger.Fields("count", len(keys)))
	}
	return len(keys)
}

// InvalidateKey marks a single key stale. It reports whether the key was
// cached.
func (c *Cache[V]) InvalidateKey(key cachekey.Key) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.gen++
		if e.status == StatusFresh {
			e.status = StatusStale
		}
	}
	c.mu.Unlock()

	if ok {
		ctx := context.Background()
		c.forget(ctx, []cachekey.Key{key})
		c.metrics.RecordInvalidation(ctx, 1)
	}
	return ok
}

// Peek returns a snapshot of key without loading or touching it.
func (c *Cache[V]) Peek(key cachekey.Key) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	e.age(c.now(), c.cfg.StaleTime)
	return e.snapshot(key), true
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep evicts entries not read within GCTime and returns how many were
// removed. Entries with a load in flight are kept.
func (c *Cache[V]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if e.loading || now.Sub(e.lastAccess) < c.cfg.GCTime {
			continue
		}
		delete(c.entries, k)
		n++
	}
	return n
}

// StartJanitor runs Sweep every SweepInterval until ctx is done.
func (c *Cache[V]) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.log.Debug("entries evicted", logger.Fields("count", n))
				}
			}
		}
	}()
}

// Wait blocks until no load is in flight. Loads started while Wait is
// blocked are waited for too.
func (c *Cache[V]) Wait() {
	c.flightMu.Lock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
	c.flightMu.Unlock()
}

func (c *Cache[V]) entryLocked(key cachekey.Key) *entry[V] {
	e, ok := c.entries[key]
	if !ok {
		e = &entry[V]{status: StatusPending, lastAccess: c.now()}
		c.entries[key] = e
	}
	return e
}

// start joins or starts the load of key. The returned channel receives the
// shared result.
func (c *Cache[V]) start(ctx context.Context, key cachekey.Key, loader Loader[V]) <-chan singleflight.Result {
	detached := context.WithoutCancel(ctx)

	c.flightMu.Lock()
	c.inflight++
	c.flightMu.Unlock()

	shared := c.group.DoChan(key.String(), func() (any, error) {
		return c.load(detached, key, loader)
	})

	out := make(chan singleflight.Result, 1)
	go func() {
		defer c.landed()
		out <- <-shared
	}()
	return out
}

func (c *Cache[V]) landed() {
	c.flightMu.Lock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
	c.flightMu.Unlock()
}

func (c *Cache[V]) load(ctx context.Context, key cachekey.Key, loader Loader[V]) (V, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.loading = true
	gen, hasValue := e.gen, e.hasValue
	c.mu.Unlock()

	if !hasValue && c.persist != nil {
		if v, ok := c.fromPersistent(ctx, key, gen); ok {
			return v, nil
		}
	}

	if c.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LoadTimeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanCacheLoad, trace.WithAttributes(
		attribute.String(observability.AttrResource, key.Resource()),
		attribute.String(observability.AttrCacheKey, key.String()),
		attribute.Int(observability.AttrPage, key.Page()),
	))
	started := c.now()
	v, err := loader(ctx, key)
	c.metrics.RecordLoad(ctx, key.Resource(), c.now().Sub(started), err)
	observability.EndSpan(span, err)

	now := c.now()
	c.mu.Lock()
	e = c.entryLocked(key)
	e.loading = false
	current := e.gen == gen
	if err != nil {
		e.err = err
		if !e.hasValue {
			e.status = StatusError
		}
	} else {
		e.value, e.hasValue, e.err = v, true, nil
		e.insertedAt = now
		e.status = StatusFresh
		if !current {
			e.status = StatusStale
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("load failed", logger.Fields(
			logger.FieldResource, key.Resource(),
			logger.FieldCacheKey, key.String(),
			logger.FieldError, err.Error(),
		))
		return v, err
	}

	if c.persist != nil && current {
		if perr := c.persist.Save(ctx, key.String(), &v, c.cfg.PersistTTL); perr != nil {
			c.log.Warn("persist failed", logger.Fields(logger.FieldCacheKey, key.String(), logger.FieldError, perr.Error()))
		}
	}
	return v, nil
}

// fromPersistent installs a persisted value as stale, so the next read
// revalidates it against the store.
func (c *Cache[V]) fromPersistent(ctx context.Context, key cachekey.Key, gen uint64) (V, bool) {
	var zero V
	p, err := c.persist.Load(ctx, key.String())
	if err != nil {
		c.log.Warn("persistent load failed", logger.Fields(logger.FieldCacheKey, key.String(), logger.FieldError, err.Error()))
		return zero, false
	}
	if p == nil {
		return zero, false
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	if e.gen != gen {
		// invalidated while reading the persistent tier
		return zero, false
	}
	e.loading = false
	e.value, e.hasValue, e.err = *p, true, nil
	e.status = StatusStale
	e.insertedAt = now
	return *p, true
}

func (c *Cache[V]) forget(ctx context.Context, keys []cachekey.Key) {
	if c.persist == nil {
		return
	}
	for _, k := range keys {
		if err := c.persist.Delete(ctx, k.String()); err != nil {
			c.log.Warn("persist delete failed", logger.Fields(logger.FieldCacheKey, k.String(), logger.FieldError, err.Error()))
		}
	}
}
