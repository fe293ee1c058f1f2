// Package api hosts the HTTP server and middleware for operator access while a
// batch runs. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the counters of the running batch.
package api
