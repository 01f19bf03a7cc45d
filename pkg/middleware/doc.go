// Package middleware provides net/http middleware for the live host.
//
// This package includes:
//   - Prometheus request metrics
//   - OpenTelemetry request tracing
//
// Both label requests by their chi route pattern, such as
// "/items/{key}", rather than the raw path, so label cardinality stays
// bounded.
//
// # Prometheus Metrics
//
//	r := chi.NewRouter()
//	r.Use(middleware.Metrics(middleware.WithRegistry(reg)))
//
// Collected series:
//   - vbind_http_requests_total{method, route, status}
//   - vbind_http_request_duration_seconds{method, route}
//   - vbind_http_requests_in_flight
//
// # OpenTelemetry Tracing
//
//	r.Use(middleware.Tracing(
//	    middleware.WithTracer(tracer),
//	    middleware.WithFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// Handlers reach the request span with trace.SpanFromContext(r.Context()).
package middleware
