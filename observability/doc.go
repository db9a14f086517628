// Package observability wires OpenTelemetry tracing and metrics.
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("viewkit"))
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, &meterCfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewCacheMetrics(observability.Meter("fetchcache"))
//
// Health reports are assembled with CheckAll from any HealthChecker.
package observability
