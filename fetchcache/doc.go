// Package fetchcache is a keyed remote-data cache with stale-while-revalidate
// reads, in-flight de-duplication, invalidation and prefetch.
//
// Entries move through pending, fresh, stale and error. A read returns a
// cached value immediately whenever one exists; a stale value additionally
// schedules a background refetch. At most one load per key runs at a time,
// shared by foreground reads, revalidation and prefetch alike.
//
//	c := fetchcache.New[Page](fetchcache.Config{StaleTime: 30 * time.Second})
//	page, err := c.Get(ctx, key, loadPage)
//	c.Invalidate(cachekey.ForResource("bookings"))
//
// Loads run detached from the caller's cancellation, so an abandoned read or
// prefetch still completes and populates the cache.
package fetchcache
