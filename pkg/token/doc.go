// Package token provides random identifier generation and the salted,
// iterated keyed hash used for credential verification and message signing.
//
// Identifier Formats:
//
//   - Session ID: 24 alphanumeric characters
//   - Token ID (jti): 32 alphanumeric characters
//   - Salt: 128 hex characters (64 random bytes)
//
// Hash Format:
//
//   - PBKDF2-HMAC-SHA256 over the input, salt used as UTF-8 bytes
//   - 32-byte derived key, hex encoded (64 characters)
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - Constant-time comparison in Verify
package token
