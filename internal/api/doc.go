// Package api implements the HTTP REST API for Radiolink Core.
//
// This package provides:
//   - REST endpoints for the mirrored receiver: record, readings, history
//   - Command and settings endpoints driving the bridge
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// The API server sits between local dashboards or scripts and the bridge
// engine. Reads come straight from the readings store and the SQLite
// history; commands and settings changes are marshalled onto the bridge's
// engine goroutine, so the API never races the protocol loop.
//
// # Security
//
// The API carries no authentication and binds to localhost by default.
// Exposing it beyond the host is a deployment decision that belongs behind
// a reverse proxy.
//
// # Graceful Degradation
//
// The server operates without a history repository — the history endpoint
// then answers 503 while the live snapshot keeps working.
package api
