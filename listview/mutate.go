package listview

import (
	"context"

	"github.com/kbukum/viewkit/cachekey"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/resource"
)

// Mutate runs fn against the store. When fn succeeds every cached page of
// the resource becomes stale, so the next read refetches it. A failed
// mutation leaves the cache untouched.
func (v *View[T]) Mutate(ctx context.Context, fn func(ctx context.Context, store resource.Store) error) error {
	if err := fn(ctx, v.store); err != nil {
		v.log.Warn("mutation failed", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	n := v.cache.Invalidate(cachekey.ForResource(v.name))
	v.log.Debug("mutation applied", logger.Fields("invalidated", n))
	return nil
}

// Insert creates rows.
func (v *View[T]) Insert(ctx context.Context, rows ...resource.Row) ([]resource.Row, error) {
	var out []resource.Row
	err := v.Mutate(ctx, func(ctx context.Context, s resource.Store) (err error) {
		out, err = s.Insert(ctx, v.table, rows...)
		return err
	})
	return out, err
}

// Update sets values on the rows matching where.
func (v *View[T]) Update(ctx context.Context, values resource.Row, where ...resource.Predicate) ([]resource.Row, error) {
	var out []resource.Row
	err := v.Mutate(ctx, func(ctx context.Context, s resource.Store) (err error) {
		out, err = s.Update(ctx, v.table, values, where...)
		return err
	})
	return out, err
}

// Delete removes the rows matching where.
func (v *View[T]) Delete(ctx context.Context, where ...resource.Predicate) error {
	return v.Mutate(ctx, func(ctx context.Context, s resource.Store) error {
		return s.Delete(ctx, v.table, where...)
	})
}
