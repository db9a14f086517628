package main

import (
	"context"
	"fmt"

	"github.com/kbukum/viewkit/observability"
)

// setupTelemetry installs the OTLP providers when enabled and creates the
// cache and request instruments. Without providers the instruments record
// into the global no-op meter.
func setupTelemetry(ctx context.Context, a *app) (*observability.CacheMetrics, *observability.RequestMetrics, error) {
	tc := a.Cfg.Telemetry
	if tc.Enabled {
		mc := tc.MeterConfig(&a.Cfg.ServiceConfig)
		mp, err := observability.InitMeter(ctx, &mc)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: %w", err)
		}
		a.OnStop(mp.Shutdown)

		tp, err := observability.InitTracer(ctx, tc.TracerConfig(&a.Cfg.ServiceConfig))
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: %w", err)
		}
		a.OnStop(tp.Shutdown)
		a.Summary.TrackInfrastructure("otlp", "telemetry", tc.Endpoint)
	}

	meter := observability.Meter(meterName)
	cacheMetrics, err := observability.NewCacheMetrics(meter)
	if err != nil {
		return nil, nil, fmt.Errorf("cache metrics: %w", err)
	}
	requestMetrics, err := observability.NewRequestMetrics(meter)
	if err != nil {
		return nil, nil, fmt.Errorf("request metrics: %w", err)
	}
	return cacheMetrics, requestMetrics, nil
}
