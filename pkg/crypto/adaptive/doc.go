// Package adaptive provides authenticated encryption for SigMesh data at rest.
//
// The cipher is chosen from hardware capabilities:
//
//   - AES-256-GCM: when the CPU has AES acceleration
//   - ChaCha20-Poly1305: otherwise
//
// Seal and Open wrap a payload in a self-describing container so that a file
// sealed on one machine opens on another regardless of which cipher the
// reader would pick. Keys are derived from a passphrase with Argon2id and a
// random salt stored in the container.
//
// Usage:
//
//	sealed, err := adaptive.Seal([]byte("passphrase"), plaintext)
//	plaintext, err := adaptive.Open([]byte("passphrase"), sealed)
package adaptive
