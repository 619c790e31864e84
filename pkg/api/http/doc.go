// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Workflow template submission and management
//   - Execution lifecycle (start, pause, resume, cancel) and snapshots
//   - External executor callbacks (node running / node completed)
//   - Health checks
//   - Prometheus metrics
package http
