// Package main provides the entry point for sigmesh-server.
//
// The server provides:
//
//   - HTTP/HTTPS API for client authentication and session lifecycle
//   - Signed, time-bounded message endpoints bound to a session salt
//   - Prometheus metrics and health endpoints
//
// Usage:
//
//	sigmesh-server [flags]
//	sigmesh-server -config /etc/sigmesh-server/config.yaml
//	sigmesh-server -config /etc/sigmesh-server/config.yaml -check
//
// Settings can be overridden with SIGMESH_ environment variables, using a
// double underscore between sections: SIGMESH_SESSION__ACCESS_TTL=30m.
package main
