// Package service provides domain services for SigMesh.
package service

import (
	"github.com/yndnr/sigmesh/internal/core/domain"
)

// Session transitions reported to an Observer.
const (
	TransitionCreated = "created"
	TransitionRotated = "rotated"
	TransitionClosed  = "closed"
	TransitionExpired = "expired"
	TransitionReset   = "reset"
)

// Observer receives service events, typically for metrics.
type Observer interface {
	// SessionTransition is called after a session changes state.
	// active is the number of live sessions after the change.
	SessionTransition(transition string, active int)

	// AuthFailure is called when authentication is refused.
	AuthFailure(reason string)

	// TokenRejected is called when a presented token fails validation.
	TokenRejected(reason string)

	// EnvelopeRejected is called when a message fails validation.
	EnvelopeRejected(reason string)
}

type nopObserver struct{}

func (nopObserver) SessionTransition(string, int) {}
func (nopObserver) AuthFailure(string)            {}
func (nopObserver) TokenRejected(string)          {}
func (nopObserver) EnvelopeRejected(string)       {}

// NopObserver returns an Observer that discards all events.
func NopObserver() Observer {
	return nopObserver{}
}

// RejectionReason maps an error to a short, low-cardinality label.
func RejectionReason(err error) string {
	de, ok := domain.AsDomainError(err)
	if !ok {
		return "internal"
	}
	switch de.Code {
	case domain.ErrClientNotFound.Code:
		return "client_not_found"
	case domain.ErrInvalidCredential.Code:
		return "invalid_credential"
	case domain.ErrCapacityExceeded.Code:
		return "capacity_exceeded"
	case domain.ErrSessionNotFound.Code:
		return "session_not_found"
	case domain.ErrIPMismatch.Code:
		return "ip_mismatch"
	case domain.ErrMissingAuthorization.Code:
		return "missing_authorization"
	case domain.ErrTokenSignatureInvalid.Code:
		return "signature_invalid"
	case domain.ErrTokenIssuerMismatch.Code:
		return "issuer_mismatch"
	case domain.ErrTokenExpired.Code:
		return "expired"
	case domain.ErrTokenRawMismatch.Code:
		return "raw_mismatch"
	case domain.ErrMessageNotJSON.Code:
		return "not_json"
	case domain.ErrMessageMissingExp.Code:
		return "missing_exp"
	case domain.ErrMessageExpired.Code:
		return "expired"
	case domain.ErrMessageMissingSignature.Code:
		return "missing_signature"
	case domain.ErrMessageTampered.Code:
		return "tampered"
	case domain.ErrMessageMissingFields.Code:
		return "missing_fields"
	}
	return "other"
}
