// Package server provides the status HTTP server of a streamkit daemon: a
// gin engine behind an h2c handler, following the component lifecycle.
//
// # Routes
//
//   - GET /health: aggregated component health, 503 when one is unhealthy
//   - GET /info: build information and uptime
//   - GET /pipeline: pipeline state and per-stage queue sizes
//   - GET /pipeline/links: every link with its queue status
//   - POST /pipeline/stop: posts a Stop event; the daemon performs the stop
//
// # Middleware
//
// Recovery, RequestID, CORS and RequestLogger live in server/middleware and
// wrap the whole handler.
package server
