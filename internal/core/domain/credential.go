// Package domain defines the core domain models for SigMesh.
package domain

import (
	"strings"
)

// Credential constraints.
const (
	MaxClientIDLength = 128
	MinMaxSessions    = 1
)

// ClientCredential is the provisioned record of one API client.
//
// Records are loaded once at startup and never mutated afterwards.
type ClientCredential struct {
	// ID is the client identifier (tid).
	ID string `json:"tid" yaml:"tid"`

	// MaxSessions is the number of concurrently active sessions allowed.
	MaxSessions int `json:"limit" yaml:"limit"`

	// Salt keys the hash of the secret and the reset cookie.
	Salt string `json:"salt" yaml:"salt"`

	// HashedSecret is the keyed hash of the pre-shared secret.
	HashedSecret string `json:"hashed_secret" yaml:"hashed_secret"`

	// HashedResetCookie is the keyed hash of the reset cookie.
	HashedResetCookie string `json:"hashed_reset_cookie" yaml:"hashed_reset_cookie"`
}

// Validate validates the credential fields against constraints.
func (c *ClientCredential) Validate() error {
	var violations []string

	if c.ID == "" {
		violations = append(violations, "tid is required")
	}
	if len(c.ID) > MaxClientIDLength {
		violations = append(violations, "tid exceeds 128 characters")
	}
	if c.MaxSessions < MinMaxSessions {
		violations = append(violations, "limit must be at least 1")
	}
	if c.Salt == "" {
		violations = append(violations, "salt is required")
	}
	if c.HashedSecret == "" {
		violations = append(violations, "hashed_secret is required")
	}
	if c.HashedResetCookie == "" {
		violations = append(violations, "hashed_reset_cookie is required")
	}

	if len(violations) > 0 {
		details := strings.Join(violations, "; ")
		if c.ID != "" {
			details = c.ID + ": " + details
		}
		return ErrInvalidArgument.WithDetails(details)
	}
	return nil
}
