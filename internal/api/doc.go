// Package api implements the HTTP API and WebSocket stream of the I/O bridge.
//
// This package provides:
//   - REST endpoints to list channels, drive outputs, set default output
//     patterns and request a state resync
//   - a WebSocket hub that streams channel state, status and defaults events
//   - HS256 JWT bearer authentication, with single-use tickets for WebSocket
//   - middleware for request IDs, logging, panic recovery, CORS and body limits
//   - JSON runtime metrics and a Prometheus /metrics endpoint
//
// # Correlation
//
// The X-Request-ID header of a command request, or a generated id, becomes
// the correlation id of every notification the command causes. It is
// echoed on the response and carried to webhook and MQTT consumers.
//
// # Security
//
// When security.jwt.secret is empty, authentication is disabled and every
// route is open. This is intended for bench setups on a trusted network.
package api
