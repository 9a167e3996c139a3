// Package domain defines the core domain models for SigMesh.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - ClientCredential: pre-provisioned API client record
//   - Session: authenticated session bound to one client and one IP
//   - Token: access/refresh bearer token minted for a session
//   - Errors: Domain-specific error definitions
package domain
