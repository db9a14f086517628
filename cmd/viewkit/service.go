package main

import (
	"context"
	"fmt"
	"net/http"

	"gorm.io/driver/sqlite"

	"github.com/kbukum/viewkit/bootstrap"
	"github.com/kbukum/viewkit/config"
	"github.com/kbukum/viewkit/fetchcache"
	"github.com/kbukum/viewkit/listview"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/redis"
	"github.com/kbukum/viewkit/resource"
	"github.com/kbukum/viewkit/resource/gormstore"
	"github.com/kbukum/viewkit/resource/postgrest"
	"github.com/kbukum/viewkit/server"
)

const meterName = "github.com/kbukum/viewkit"

type (
	page = listview.Page[resource.Row]
	app  = bootstrap.App[*config.Config]
)

// service is everything newService wired.
type service struct {
	server   *server.Server
	store    resource.Store
	cache    *fetchcache.Cache[page]
	views    []*listview.View[resource.Row]
	warmups  map[string][]string
	checkers []observability.HealthChecker
}

// newService builds the store, cache tier, views and server, and registers
// their start and stop hooks on a.
func newService(ctx context.Context, a *app) (*service, error) {
	cacheMetrics, requestMetrics, err := setupTelemetry(ctx, a)
	if err != nil {
		return nil, err
	}

	svc := &service{warmups: make(map[string][]string)}
	if err := svc.openStore(ctx, a); err != nil {
		return nil, err
	}
	if err := svc.openCache(ctx, a, cacheMetrics); err != nil {
		return nil, err
	}

	svc.server = server.New(a.Cfg.Server, a.Logger)
	svc.server.ApplyMiddleware(requestMetrics)
	svc.server.RegisterHealth(a.Name, a.Version, svc.checkers...)
	a.Summary.TrackRoute(http.MethodGet, "/health", "health")
	a.Summary.TrackRoute(http.MethodGet, "/alive", "liveness")

	for _, name := range a.Cfg.ViewNames() {
		if err := svc.addView(a, name, a.Cfg.Views[name]); err != nil {
			return nil, err
		}
	}
	for _, c := range svc.checkers {
		a.AddHealthChecker(c)
	}

	a.OnReady(svc.server.Start, svc.warm(a.Logger))
	a.OnStop(svc.server.Stop)
	return svc, nil
}

func (s *service) openStore(ctx context.Context, a *app) error {
	cfg := a.Cfg.Store
	switch cfg.Driver {
	case config.DriverPostgREST:
		store, err := postgrest.New(cfg.PostgREST, postgrest.WithLogger(a.Logger))
		if err != nil {
			return fmt.Errorf("postgrest store: %w", err)
		}
		s.store = store
		s.checkers = append(s.checkers, store)
		a.Summary.TrackInfrastructure("postgrest", "store", cfg.PostgREST.URL)

	case config.DriverSQLite:
		db, err := gormstore.Open(ctx, sqlite.Open(cfg.SQL.DSN), cfg.SQL, a.Logger)
		if err != nil {
			return fmt.Errorf("sqlite store: %w", err)
		}
		a.OnStop(func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		store := gormstore.New(db, gormstore.WithLogger(a.Logger))
		s.store = store
		s.checkers = append(s.checkers, store)
		a.Summary.TrackInfrastructure("sqlite", "store", cfg.SQL.DSN)

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	return nil
}

// openCache creates the page cache shared by every view, backed by Redis
// when enabled.
func (s *service) openCache(ctx context.Context, a *app, metrics *observability.CacheMetrics) error {
	opts := []fetchcache.Option[page]{
		fetchcache.WithLogger[page](a.Logger),
		fetchcache.WithMetrics[page](metrics),
	}

	if a.Cfg.Redis.Enabled {
		client, err := redis.New(a.Cfg.Redis, a.Logger)
		if err != nil {
			return err
		}
		a.OnStart(func(ctx context.Context) error {
			if err := client.Ping(ctx); err != nil {
				a.Logger.Warn("redis unreachable, pages will not persist", logger.Fields(logger.FieldError, err.Error()))
			}
			return nil
		})
		a.OnStop(func(context.Context) error { return client.Close() })
		s.checkers = append(s.checkers, client)
		opts = append(opts, fetchcache.WithPersistent[page](redis.NewTypedStore[page](client, "pages")))
		a.Summary.TrackInfrastructure("redis", "cache", a.Cfg.Redis.Addr)
	}

	s.cache = fetchcache.New[page](a.Cfg.Cache, opts...)
	janitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cache.StartJanitor(janitorCtx)
	a.OnStop(func(context.Context) error {
		cancel()
		return nil
	})
	return nil
}

func (s *service) addView(a *app, name string, vc config.ViewConfig) error {
	v, err := listview.New[resource.Row](name, s.store, s.cache,
		listview.WithTable(vc.Table),
		listview.WithMapping(vc.Mapping()),
		listview.WithDefaults(vc.Defaults),
		listview.WithLogger(a.Logger),
	)
	if err != nil {
		return fmt.Errorf("view %s: %w", name, err)
	}
	v.Register(s.server.GinEngine())
	s.views = append(s.views, v)
	s.warmups[name] = vc.Warm

	base := "/" + name
	a.Summary.TrackRoute(http.MethodGet, base, "list "+vc.Table)
	a.Summary.TrackRoute(http.MethodPost, base, "insert "+vc.Table)
	a.Summary.TrackRoute(http.MethodPatch, base+"/:id", "update "+vc.Table)
	a.Summary.TrackRoute(http.MethodDelete, base+"/:id", "delete "+vc.Table)
	return nil
}

// warm loads the configured startup pages. Failures are logged; a cold
// cache still serves.
func (s *service) warm(log *logger.Logger) bootstrap.Hook {
	return func(ctx context.Context) error {
		for _, v := range s.views {
			raws := s.warmups[v.Name()]
			if len(raws) == 0 {
				continue
			}
			if err := v.Warm(ctx, raws...); err != nil {
				log.Warn("cache warm-up failed", logger.Fields(logger.FieldResource, v.Name(), logger.FieldError, err.Error()))
			}
		}
		return nil
	}
}
