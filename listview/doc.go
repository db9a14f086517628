// Package listview serves paginated, filtered and sorted lists of a
// resource. A View decodes the list query, resolves its cache key, reads
// through a fetchcache.Cache backed by a resource.Store, and prefetches the
// neighbouring pages. Mutations invalidate every cached page of the
// resource once they succeed.
//
//	cache := fetchcache.New[listview.Page[Booking]](cacheCfg)
//	view, err := listview.New("bookings", store, cache,
//		listview.WithDefaults(querystate.Defaults{Sort: querystate.Sort{Field: "startDate", Direction: querystate.Desc}}),
//		listview.WithPageSize(10))
//	page, err := view.Load(ctx, "status=checked-in&sortBy=totalPrice-asc&page=3")
package listview
