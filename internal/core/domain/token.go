// Package domain defines the core domain models for SigMesh.
package domain

import (
	"time"
)

// TokenKind distinguishes the two bearer tokens held by a session.
type TokenKind int

const (
	// TokenAccess authorizes ordinary protected calls.
	TokenAccess TokenKind = iota + 1

	// TokenRefresh authorizes rotation and closure only.
	TokenRefresh
)

// Header values carried in the token's "type" header.
const (
	AccessTokenType  = "access_token"
	RefreshTokenType = "refresh_token"
)

// String returns the kind's header value.
func (k TokenKind) String() string {
	switch k {
	case TokenAccess:
		return AccessTokenType
	case TokenRefresh:
		return RefreshTokenType
	default:
		return "unknown"
	}
}

// ParseTokenKind maps a header value back to a TokenKind.
func ParseTokenKind(s string) (TokenKind, bool) {
	switch s {
	case AccessTokenType:
		return TokenAccess, true
	case RefreshTokenType:
		return TokenRefresh, true
	}
	return 0, false
}

// Token is a signed bearer token minted for exactly one session.
type Token struct {
	// Kind is access or refresh.
	Kind TokenKind

	// Issuer is the session ID the token was minted for.
	Issuer string

	// ID is the per-mint unique identifier (jti).
	ID string

	// ExpiresAt is the absolute expiry, second precision.
	ExpiresAt time.Time

	// Raw is the exact encoded form handed to the client.
	// It is the only form the session accepts.
	Raw string
}

// IsExpired reports whether the token has expired at now.
// A token is valid strictly before its expiry instant.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
