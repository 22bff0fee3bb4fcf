// Package server exposes a read-mostly HTTP API over an engine: the current
// scan, its providers and skipped units, on-demand rescans, root resolution
// and whole-graph checks.
//
// The API is served by Gin behind h2c so HTTP/2 clients work without TLS.
// Plain net/http middleware wraps the Gin engine:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - RequestLogger: request logging with duration tracking
//   - BodySizeLimit: request body size limit
//
// # Endpoints
//
//   - GET  /health: engine health and build version
//   - GET  /v1/providers: declared providers, optionally filtered by ?type=
//   - GET  /v1/skipped: units left out of the last scan
//   - POST /v1/scan: rescan the tree
//   - POST /v1/resolve: plan a root; resolution failures answer 422
//   - GET  /v1/check: validate the whole graph; failures answer 422
package server
