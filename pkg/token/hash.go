// Package token provides identifier generation and hashing utilities.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the PBKDF2 iteration count used when none is configured.
const DefaultIterations = 100

// KeyLength is the derived key length in bytes.
const KeyLength = sha256.Size

// Hasher computes a salted, iterated keyed hash.
//
// A Hasher is immutable and safe for concurrent use.
type Hasher struct {
	salt       []byte
	iterations int
}

// NewHasher creates a Hasher keyed by salt.
//
// iterations <= 0 selects DefaultIterations.
func NewHasher(salt string, iterations int) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Hasher{salt: []byte(salt), iterations: iterations}
}

// Iterations returns the configured iteration count.
func (h *Hasher) Iterations() int {
	return h.iterations
}

// Hash returns the hex-encoded hash of data.
func (h *Hasher) Hash(data string) string {
	return h.HashBytes([]byte(data))
}

// HashBytes returns the hex-encoded hash of raw bytes.
func (h *Hasher) HashBytes(data []byte) string {
	dk := pbkdf2.Key(data, h.salt, h.iterations, KeyLength, sha256.New)
	return hex.EncodeToString(dk)
}

// Verify reports whether data hashes to expectedHash.
//
// Uses constant-time comparison to prevent timing attacks.
func (h *Hasher) Verify(data, expectedHash string) bool {
	return h.VerifyBytes([]byte(data), expectedHash)
}

// VerifyBytes reports whether raw bytes hash to expectedHash.
func (h *Hasher) VerifyBytes(data []byte, expectedHash string) bool {
	actualHash := h.HashBytes(data)
	return subtle.ConstantTimeCompare([]byte(actualHash), []byte(expectedHash)) == 1
}

// Hash is a convenience wrapper for NewHasher(salt, iterations).Hash(data).
func Hash(data, salt string, iterations int) string {
	return NewHasher(salt, iterations).Hash(data)
}
