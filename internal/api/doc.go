// Package api hosts the HTTP server, middleware, and JSON handlers for the site copier.
// Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/scan and /api/analyze to inventory a site and inspect one page.
//   - POST /api/replace to preview a single button or pixel edit.
//   - POST /api/download and /api/download-with-replacements to stream archives.
package api
