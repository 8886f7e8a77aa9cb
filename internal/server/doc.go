// Package server provides the HTTP surface of the web entrypoint: routing, middleware,
// health probes and the serve loop.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Probes
//
// [HealthHandler] serves /healthz (process liveness) and /readyz. Readiness calls a [Prober]
// through a circuit breaker that opens after 3 consecutive failures and half-opens after 30 seconds,
// so a down database is not hammered by orchestrator probes.
//
// # Serving
//
// [Server.Run] runs the listener and the shutdown watcher in one errgroup. Cancelling the context
// drains in-flight requests before returning.
package server
