// Package httpserver provides the HTTP/HTTPS server for SigMesh.
//
// This package wires the API handler into a stdlib net/http server:
//
//   - Session endpoints: /v1/auth, /v1/reset, /v1/{sid}/refresh_session, /v1/{sid}/close_session
//   - Signed-message endpoints: /v1/{sid}/status, /v1/{sid}/echo
//   - Health endpoints: /health, /ready, /metrics
//
// Every API route passes through RequestID, Recover, RateLimit, Audit and
// Metrics. The metrics endpoint has its own allowlist and bearer token.
package httpserver
