// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/search to run an aggregated job search.
//   - GET /v1/sources for the registered backend catalog.
//   - GET /v1/quota for per-backend quota status.
package api
