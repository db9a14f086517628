package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/viewkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns defaults for local development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs an OTLP meter provider as the global provider.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// CacheMetrics holds the instruments of a fetch cache.
type CacheMetrics struct {
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	loads         metric.Int64Counter
	loadDuration  metric.Float64Histogram
	errors        metric.Int64Counter
	invalidations metric.Int64Counter
	prefetches    metric.Int64Counter
}

// NewCacheMetrics creates cache instruments on meter.
func NewCacheMetrics(meter metric.Meter) (*CacheMetrics, error) {
	var (
		m   CacheMetrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.hits, "cache.hits", "Reads served from a cached entry"},
		{&m.misses, "cache.misses", "Reads that had to wait for a load"},
		{&m.loads, "cache.loads", "Loader invocations"},
		{&m.errors, "cache.errors", "Failed loads"},
		{&m.invalidations, "cache.invalidations", "Entries marked stale by invalidation"},
		{&m.prefetches, "cache.prefetches", "Prefetch requests that started a load"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	m.loadDuration, err = meter.Float64Histogram("cache.load.duration",
		metric.WithDescription("Duration of loads in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache.load.duration histogram: %w", err)
	}
	return &m, nil
}

// NopCacheMetrics returns instruments that record nothing.
func NopCacheMetrics() *CacheMetrics {
	m, _ := NewCacheMetrics(noop.NewMeterProvider().Meter("nop"))
	return m
}

func resourceAttr(resource string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttrResource, resource))
}

// RecordHit records a read served from the cache.
func (m *CacheMetrics) RecordHit(ctx context.Context, resource string) {
	m.hits.Add(ctx, 1, resourceAttr(resource))
}

// RecordMiss records a read that waited for a load.
func (m *CacheMetrics) RecordMiss(ctx context.Context, resource string) {
	m.misses.Add(ctx, 1, resourceAttr(resource))
}

// RecordLoad records a completed load and its outcome.
func (m *CacheMetrics) RecordLoad(ctx context.Context, resource string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.errors.Add(ctx, 1, resourceAttr(resource))
	}
	m.loads.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrResource, resource),
		attribute.String(AttrStatus, status),
	))
	m.loadDuration.Record(ctx, duration.Seconds(), resourceAttr(resource))
}

// RecordInvalidation records n entries marked stale.
func (m *CacheMetrics) RecordInvalidation(ctx context.Context, n int) {
	if n > 0 {
		m.invalidations.Add(ctx, int64(n))
	}
}

// RecordPrefetch records a prefetch that started a load.
func (m *CacheMetrics) RecordPrefetch(ctx context.Context, resource string) {
	m.prefetches.Add(ctx, 1, resourceAttr(resource))
}

// RequestMetrics holds HTTP request instruments.
type RequestMetrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestActive   metric.Int64UpDownCounter
}

// NewRequestMetrics creates request instruments on meter.
func NewRequestMetrics(meter metric.Meter) (*RequestMetrics, error) {
	requestTotal, err := meter.Int64Counter("request.total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("request.duration",
		metric.WithDescription("Duration of requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}

	requestActive, err := meter.Int64UpDownCounter("request.active",
		metric.WithDescription("Number of currently active requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.active gauge: %w", err)
	}

	return &RequestMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestActive:   requestActive,
	}, nil
}

// RecordRequestStart increments the active request count.
func (m *RequestMetrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed request.
func (m *RequestMetrics) RecordRequestEnd(ctx context.Context, route, method string, status int, duration time.Duration) {
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
		attribute.Int(AttrStatus, status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("method", method),
	))
}
