package listview

import (
	"context"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/viewkit/cachekey"
	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/fetchcache"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/querystate"
	"github.com/kbukum/viewkit/resource"
)

// DefaultPageSize is the page size when none is configured.
const DefaultPageSize = 10

// Page is one page of a list.
type Page[T any] struct {
	Data       []T `json:"data"`
	Count      int `json:"count"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

type options struct {
	table     string
	defaults  querystate.Defaults
	mapping   resource.Mapping
	keyColumn string
	prefetch  bool
	warmLimit int
	log       *logger.Logger
}

// Option configures a View.
type Option func(*options)

// WithTable reads rows from table instead of the table named like the view.
func WithTable(table string) Option {
	return func(o *options) { o.table = table }
}

// WithDefaults sets the decode defaults of the list. When
// d.AllowedSortFields is empty, sorting is limited to the key column, the
// default sort field, the renamed Fields and the Columns of the mapping.
func WithDefaults(d querystate.Defaults) Option {
	return func(o *options) { o.defaults = d }
}

// WithPageSize sets the number of rows per page.
func WithPageSize(n int) Option {
	return func(o *options) { o.mapping.PageSize = n }
}

// WithMapping sets how descriptors become store queries. A zero PageSize in
// m keeps the configured page size.
func WithMapping(m resource.Mapping) Option {
	return func(o *options) {
		size := o.mapping.PageSize
		o.mapping = m
		if o.mapping.PageSize == 0 {
			o.mapping.PageSize = size
		}
	}
}

// WithKeyColumn sets the primary key column used by item routes. Defaults
// to "id".
func WithKeyColumn(col string) Option {
	return func(o *options) { o.keyColumn = col }
}

// WithoutPrefetch disables neighbour prefetching on Load.
func WithoutPrefetch() Option {
	return func(o *options) { o.prefetch = false }
}

// WithLogger sets the view logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// View is a cached list of one resource.
type View[T any] struct {
	name      string
	table     string
	defaults  querystate.Defaults
	mapping   resource.Mapping
	keyColumn string
	prefetch  bool
	warmLimit int
	store     resource.Store
	cache     *fetchcache.Cache[Page[T]]
	log       *logger.Logger
}

// New creates a view of the named resource.
func New[T any](name string, store resource.Store, cache *fetchcache.Cache[Page[T]], opts ...Option) (*View[T], error) {
	if !resource.ValidIdentifier(name) {
		return nil, errors.InvalidInput("resource", "invalid resource name "+name)
	}
	if store == nil || cache == nil {
		return nil, errors.MissingField("store")
	}

	o := options{
		mapping:   resource.Mapping{PageSize: DefaultPageSize},
		keyColumn: "id",
		prefetch:  true,
		warmLimit: 4,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table == "" {
		o.table = name
	}
	if !resource.ValidIdentifier(o.table) {
		return nil, errors.InvalidInput("table", "invalid table name "+o.table)
	}
	if o.mapping.PageSize <= 0 {
		o.mapping.PageSize = DefaultPageSize
	}
	o.defaults.ApplyDefaults()
	if len(o.defaults.AllowedSortFields) == 0 {
		o.defaults.AllowedSortFields = sortableFields(o.defaults, o.mapping, o.keyColumn)
	}

	return &View[T]{
		name:      name,
		table:     o.table,
		defaults:  o.defaults,
		mapping:   o.mapping,
		keyColumn: o.keyColumn,
		prefetch:  o.prefetch,
		warmLimit: o.warmLimit,
		store:     store,
		cache:     cache,
		log:       o.log.WithComponent("listview").WithFields(logger.Fields(logger.FieldResource, name)),
	}, nil
}

// sortableFields lists the fields the view knows to exist in the store, so
// a sortBy on anything else decodes to the default sort.
func sortableFields(d querystate.Defaults, m resource.Mapping, keyColumn string) []string {
	set := make(map[string]struct{})
	add := func(f string) {
		if querystate.ValidField(f) {
			set[f] = struct{}{}
		}
	}
	add(keyColumn)
	add(d.Sort.Field)
	for f := range m.Fields {
		add(f)
	}
	for _, c := range m.Columns {
		add(c)
	}
	return slices.Sorted(maps.Keys(set))
}

// Name returns the resource name.
func (v *View[T]) Name() string { return v.name }

// Table returns the store table the view reads.
func (v *View[T]) Table() string { return v.table }

// Defaults returns the decode defaults.
func (v *View[T]) Defaults() querystate.Defaults { return v.defaults }

// Descriptor decodes raw with the view defaults. Invalid parameters fall
// back to their defaults and are logged at debug.
func (v *View[T]) Descriptor(raw string) querystate.Descriptor {
	d, issues := querystate.Parse(raw, v.defaults)
	for _, issue := range issues {
		v.log.Debug("query parameter ignored", logger.Fields(logger.FieldError, issue.Error()))
	}
	return d
}

// Load returns the page addressed by the raw query string and starts
// prefetching its neighbours.
func (v *View[T]) Load(ctx context.Context, raw string) (Page[T], error) {
	return v.LoadDescriptor(ctx, v.Descriptor(raw))
}

// LoadDescriptor returns the page for d and starts prefetching its
// neighbours.
func (v *View[T]) LoadDescriptor(ctx context.Context, d querystate.Descriptor) (Page[T], error) {
	key := cachekey.Resolve(v.name, d)
	page, err := v.cache.Get(ctx, key, v.load)
	if err != nil {
		return Page[T]{}, err
	}
	if v.prefetch {
		v.prefetchNeighbors(ctx, key.Descriptor(), page.TotalPages)
	}
	return page, nil
}

func (v *View[T]) prefetchNeighbors(ctx context.Context, d querystate.Descriptor, totalPages int) {
	for _, n := range cachekey.Neighbors(d, totalPages) {
		v.cache.Prefetch(ctx, cachekey.Resolve(v.name, n), v.load)
	}
}

// Warm loads the pages addressed by raw queries concurrently and waits for
// them. It returns the first failure.
func (v *View[T]) Warm(ctx context.Context, raws ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.warmLimit)
	for _, raw := range raws {
		key := cachekey.Resolve(v.name, v.Descriptor(raw))
		g.Go(func() error {
			_, err := v.cache.Get(gctx, key, v.load)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		v.log.Warn("warm-up failed", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	return nil
}

// load is the cache loader: one store round trip per page.
func (v *View[T]) load(ctx context.Context, key cachekey.Key) (Page[T], error) {
	d := key.Descriptor()
	res, err := v.store.SelectWithCount(ctx, v.table, v.mapping.Query(d))
	if err != nil {
		return Page[T]{}, err
	}
	data, err := resource.DecodeRows[T](res.Rows)
	if err != nil {
		return Page[T]{}, errors.Internal(err)
	}
	return Page[T]{
		Data:       data,
		Count:      res.Count,
		Page:       d.Page,
		TotalPages: cachekey.TotalPages(res.Count, v.mapping.PageSize),
	}, nil
}
