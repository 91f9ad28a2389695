// Package server implements the HTTP server using Echo framework.
//
// Routes: health, metrics, the market REST API, and the /ws viewer stream.
// Handlers split by concern: handlers_api.go, handlers_ws.go, handlers_health.go.
package server
