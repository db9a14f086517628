// Package redis provides the Redis-backed persistent tier for fetchcache.
//
// Client wraps go-redis with logging and a health check. TypedStore
// serializes cache values as JSON under a key prefix and implements
// fetchcache.Persistent:
//
//	client, err := redis.New(cfg, log)
//	tier := redis.NewTypedStore[listview.Page[Booking]](client, "bookings")
//	cache := fetchcache.New[listview.Page[Booking]](cacheCfg, fetchcache.WithPersistent(tier))
package redis
