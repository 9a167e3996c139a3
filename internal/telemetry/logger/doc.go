// Package logger provides structured logging for SigMesh.
//
// This package wraps log/slog:
//
//   - logger.go: Logger interface, configuration and the shared level
//   - context.go: Context-aware logging with request IDs
//   - redact.go: Sensitive data redaction
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering, adjustable at runtime
//   - Automatic masking of secrets, salts, tokens and signatures
//   - Context propagation for request tracing
package logger
