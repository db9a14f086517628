// Package server provides the HTTP server for viewkit services: a Gin engine
// behind a standard middleware chain, served over HTTP/1.1 and h2c.
//
// Middleware (server/middleware) runs around the whole mux:
//
//   - Recovery: panics become a 500 with the standard error body
//   - RequestID: X-Request-Id propagation into the request context
//   - CORS and BodySizeLimit
//   - Metrics: otel request counters and durations
//   - RequestLogger: one structured line per request
//
// Endpoints (server/endpoint): /health aggregates observability.HealthChecker
// results; /alive is a liveness probe.
package server
