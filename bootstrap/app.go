package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
)

// App is a service with a uniform lifecycle. C is the config type.
type App[C Config] struct {
	Name    string
	Version string
	Cfg     C
	Logger  *logger.Logger
	Summary *Summary

	gracefulTimeout time.Duration
	summaryOut      io.Writer
	checkers        []observability.HealthChecker

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp applies defaults to cfg, validates it and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()
	o := newOptions(opts)
	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Logger:          o.log,
		gracefulTimeout: o.gracefulTimeout,
		summaryOut:      o.summaryOut,
	}
	if app.Logger == nil {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

// AddHealthChecker includes c in the ready check and the startup summary.
func (a *App[C]) AddHealthChecker(c observability.HealthChecker) {
	a.checkers = append(a.checkers, c)
}

// ReadyCheck runs every health checker and fails when any is down.
func (a *App[C]) ReadyCheck(ctx context.Context) (*observability.ServiceHealth, error) {
	health := observability.CheckAll(ctx, a.Name, a.Version, a.checkers...)
	if health.Status == observability.HealthStatusDown {
		var down []string
		for _, h := range health.Components {
			if h.Status == observability.HealthStatusDown {
				down = append(down, h.Name+"("+h.Message+")")
			}
		}
		return health, fmt.Errorf("unhealthy components: %v", down)
	}
	return health, nil
}

// Run starts the service, blocks until a shutdown signal or ctx ends, then
// shuts down gracefully.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		if stopErr := a.stop(); stopErr != nil {
			a.Logger.Error("cleanup after failed startup", logger.ErrorFields("stop", stopErr))
		}
		return err
	}

	a.Logger.Info("application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart: %w", err)
	}

	health, err := a.ReadyCheck(ctx)
	if err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.Write(a.summaryOut, health)
	return nil
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx cancellation.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// Shutdown runs the OnStop hooks. Use it when managing the lifecycle by
// hand instead of calling Run.
func (a *App[C]) Shutdown() error {
	return a.stop()
}

// stop runs every OnStop hook in reverse order, even after a failure, and
// joins their errors.
func (a *App[C]) stop() error {
	a.Logger.Info("shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	for i := len(a.onStop) - 1; i >= 0; i-- {
		if err := a.onStop[i](ctx); err != nil {
			a.Logger.Error("onStop hook error", logger.ErrorFields("stop", err))
			errs = append(errs, err)
		}
	}
	a.onStop = nil

	a.Logger.Info("application shutdown complete")
	return stderrors.Join(errs...)
}
