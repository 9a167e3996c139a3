// Package service provides domain services for SigMesh.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models. This package contains:
//
//   - CredentialStore: provisioned client records and secret verification
//   - TokenIssuer: access/refresh token minting and validation
//   - EnvelopeCodec: signed, time-bounded JSON message validation and packing
//   - SessionManager: session creation, rotation, closure, and expiry
//
// All services are safe for concurrent use. Time and timer scheduling are
// injected so lifecycle behaviour can be tested deterministically.
package service
