// Package handler provides HTTP request handlers for SigMesh.
//
// This package implements the /v1 session and message endpoints:
//
//   - Session lifecycle: auth, refresh_session, close_session, reset
//   - Signed-message routes: status, echo
//   - Health endpoints: /health, /ready
//
// Protected routes are composed from two guards. SessionGuard checks the
// session, caller IP and bearer token of a required kind. EnvelopeGuard
// decodes and validates the signed request body. Each guard either passes
// the request on with its result in the context or writes an error.
package handler
