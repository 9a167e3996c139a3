// Package service provides domain services for SigMesh.
package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/pkg/token"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// tokenTypeHeader is the JWS header carrying the token kind.
const tokenTypeHeader = "type"

// TokenIssuerConfig holds configuration for TokenIssuer.
type TokenIssuerConfig struct {
	// AccessTTL is the access token lifetime (default: 1h).
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime (default: 7 days).
	RefreshTTL time.Duration

	// Clock overrides time.Now.
	Clock Clock
}

// DefaultTokenIssuerConfig returns default configuration.
func DefaultTokenIssuerConfig() *TokenIssuerConfig {
	return &TokenIssuerConfig{
		AccessTTL:  DefaultAccessTTL,
		RefreshTTL: DefaultRefreshTTL,
	}
}

// TokenIssuer mints and validates HS256 tokens keyed by a session salt.
type TokenIssuer struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        Clock
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(config *TokenIssuerConfig) *TokenIssuer {
	if config == nil {
		config = DefaultTokenIssuerConfig()
	}
	ti := &TokenIssuer{
		accessTTL:  config.AccessTTL,
		refreshTTL: config.RefreshTTL,
		now:        clockOrDefault(config.Clock),
	}
	if ti.accessTTL <= 0 {
		ti.accessTTL = DefaultAccessTTL
	}
	if ti.refreshTTL <= 0 {
		ti.refreshTTL = DefaultRefreshTTL
	}
	return ti
}

// Lifetime returns the configured lifetime for kind.
func (ti *TokenIssuer) Lifetime(kind domain.TokenKind) time.Duration {
	if kind == domain.TokenRefresh {
		return ti.refreshTTL
	}
	return ti.accessTTL
}

// Mint creates a token of kind for session sid, signed with salt.
func (ti *TokenIssuer) Mint(sid string, kind domain.TokenKind, salt string) (*domain.Token, error) {
	jti, err := token.GenerateTokenID()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	exp := jwt.NewNumericDate(ti.now().Add(ti.Lifetime(kind)))
	claims := jwt.RegisteredClaims{
		Issuer:    sid,
		ExpiresAt: exp,
		ID:        jti,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header[tokenTypeHeader] = kind.String()

	raw, err := t.SignedString([]byte(salt))
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return &domain.Token{
		Kind:      kind,
		Issuer:    sid,
		ID:        jti,
		ExpiresAt: exp.Time,
		Raw:       raw,
	}, nil
}

// Validate checks a presented token against the session that holds minted.
//
// The signature is verified first, then issuer and expiry. A token that
// passes both is still rejected unless it is byte-identical to minted.Raw.
func (ti *TokenIssuer) Validate(presented, salt, issuer string, minted *domain.Token) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)

	parsed, err := parser.ParseWithClaims(presented, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte(salt), nil
	})
	if err != nil {
		return classifyJWTError(err)
	}

	if minted == nil {
		return domain.ErrTokenRawMismatch.WithDetails("no token issued")
	}
	if typ, _ := parsed.Header[tokenTypeHeader].(string); typ != minted.Kind.String() {
		return domain.ErrTokenRawMismatch.WithDetails("wrong token type")
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(minted.Raw)) != 1 {
		return domain.ErrTokenRawMismatch
	}
	return nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.ErrTokenSignatureInvalid.WithCause(err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return domain.ErrTokenIssuerMismatch.WithCause(err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return domain.ErrTokenExpired.WithCause(err)
	default:
		return domain.ErrTokenSignatureInvalid.WithCause(err)
	}
}
