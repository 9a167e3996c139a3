// Package token provides identifier generation and hashing utilities.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const (
	// SessionIDLength is the length of a session identifier.
	SessionIDLength = 24

	// TokenIDLength is the length of a token's unique identifier (jti).
	TokenIDLength = 32

	// SaltBytes is the number of random bytes in a generated salt.
	SaltBytes = 64

	// SecretLength is the length of a generated pre-shared secret.
	SecretLength = 48
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateID returns a random alphanumeric string of length n.
func GenerateID(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphanumeric[idx.Int64()]
	}
	return string(buf), nil
}

// GenerateSessionID returns a new session identifier.
func GenerateSessionID() (string, error) {
	return GenerateID(SessionIDLength)
}

// GenerateTokenID returns a new token identifier.
func GenerateTokenID() (string, error) {
	return GenerateID(TokenIDLength)
}

// GenerateSalt returns SaltBytes random bytes, hex encoded.
func GenerateSalt() (string, error) {
	b, err := GenerateBytes(SaltBytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateSecret returns a random pre-shared secret suitable for provisioning.
func GenerateSecret() (string, error) {
	return GenerateID(SecretLength)
}

// GenerateBytes generates random bytes.
func GenerateBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}

// MaskID keeps the first and last four characters of an identifier so log
// lines can be correlated without revealing it.
func MaskID(id string) string {
	if len(id) <= 8 {
		return "***"
	}
	return id[:4] + "..." + id[len(id)-4:]
}
