// Package api hosts the operator HTTP listener of long-running crawl
// processes. Routes:
//   - GET /healthz for liveness probes.
//   - GET /readyz reports whether the stores and queue were initialized.
//   - GET /metrics for Prometheus scraping.
package api
