// Package domain defines the core domain models for SigMesh.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling.
package domain

import (
	"time"
)

// SessionIDLength is the length of a session identifier.
const SessionIDLength = 24

// Session is an authenticated session of one client from one IP address.
//
// A session holds exactly one live access token and one live refresh token.
// It is never mutated after creation; rotation replaces it with a new one.
type Session struct {
	// ID is the random, unguessable session identifier (sid).
	ID string

	// ClientID is the owning client (tid).
	ClientID string

	// ClientIP is the caller address bound at creation.
	ClientIP string

	// Salt keys the session's tokens and message signatures.
	Salt string

	// AccessToken is the live access token.
	AccessToken *Token

	// RefreshToken is the live refresh token.
	RefreshToken *Token

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time
}

// Token returns the live token of the given kind, or nil.
func (s *Session) Token(kind TokenKind) *Token {
	switch kind {
	case TokenAccess:
		return s.AccessToken
	case TokenRefresh:
		return s.RefreshToken
	}
	return nil
}

// Bundle returns what the client receives on creation or rotation.
func (s *Session) Bundle() *Bundle {
	b := &Bundle{SessionID: s.ID, Salt: s.Salt}
	if s.AccessToken != nil {
		b.AccessToken = s.AccessToken.Raw
	}
	if s.RefreshToken != nil {
		b.RefreshToken = s.RefreshToken.Raw
	}
	return b
}

// Bundle is the credential set returned to a client for a session.
type Bundle struct {
	SessionID    string `json:"sid"`
	Salt         string `json:"salt"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IsValidSessionID checks if a string has the session ID format.
func IsValidSessionID(id string) bool {
	if len(id) != SessionIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
