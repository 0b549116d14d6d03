// Package api hosts the optional local status server. Notable routes:
//   - GET /healthz and /readyz for liveness and channel readiness.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the status bar (clock and public IP).
//   - GET /v1/sessions and /v1/sessions/{token} for session snapshots via
//     the SessionRepository interface.
package api
