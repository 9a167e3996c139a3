// Package domain defines the core domain models for SigMesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
//
// Codes have the form SG-{CATEGORY}-{NNNN}. The numeric part carries the
// HTTP status class (400x, 403x, 404x, 429x, 5xxx).
type DomainError struct {
	Code    string // Error code (e.g., "SG-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// AsDomainError returns the DomainError in err's chain, if any.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrClientNotFound indicates the tid is not provisioned.
	ErrClientNotFound = NewDomainError("SG-AUTH-4001", "client not found")

	// ErrInvalidCredential indicates the presented secret or reset cookie is wrong.
	ErrInvalidCredential = NewDomainError("SG-AUTH-4002", "invalid credential")

	// ErrCapacityExceeded indicates the client already holds its maximum sessions.
	ErrCapacityExceeded = NewDomainError("SG-AUTH-4003", "session capacity exceeded")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested session was not found.
	ErrSessionNotFound = NewDomainError("SG-SESS-4040", "session not found")

	// ErrIPMismatch indicates the caller IP differs from the session's bound IP.
	ErrIPMismatch = NewDomainError("SG-SESS-4030", "client ip does not match session")

	// ErrMissingAuthorization indicates no bearer token was presented.
	ErrMissingAuthorization = NewDomainError("SG-SESS-4031", "missing authorization")
)

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrTokenSignatureInvalid indicates the token is malformed or not signed
	// with the session key.
	ErrTokenSignatureInvalid = NewDomainError("SG-TOKN-4032", "invalid token signature")

	// ErrTokenIssuerMismatch indicates the token was issued for another session.
	ErrTokenIssuerMismatch = NewDomainError("SG-TOKN-4033", "token issuer mismatch")

	// ErrTokenExpired indicates the token has expired.
	ErrTokenExpired = NewDomainError("SG-TOKN-4034", "token expired")

	// ErrTokenRawMismatch indicates a validly signed token that is not the one
	// currently held by the session.
	ErrTokenRawMismatch = NewDomainError("SG-TOKN-4035", "token does not match issued token")
)

// ============================================================================
// Message Errors (MSG)
// ============================================================================

var (
	// ErrMessageNotJSON indicates the request body is not a JSON object.
	ErrMessageNotJSON = NewDomainError("SG-MSG-4004", "message is not a json object")

	// ErrMessageMissingExp indicates the exp field is absent or not a number.
	ErrMessageMissingExp = NewDomainError("SG-MSG-4005", "message missing exp")

	// ErrMessageMissingSignature indicates the signature field is absent.
	ErrMessageMissingSignature = NewDomainError("SG-MSG-4006", "message missing signature")

	// ErrMessageMissingFields indicates required fields are absent or null.
	ErrMessageMissingFields = NewDomainError("SG-MSG-4007", "message missing required fields")

	// ErrMessageExpired indicates the message exp is in the past.
	ErrMessageExpired = NewDomainError("SG-MSG-4036", "message expired")

	// ErrMessageTampered indicates the signature does not match the content.
	ErrMessageTampered = NewDomainError("SG-MSG-4037", "message signature mismatch")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("SG-SYS-5000", "internal server error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("SG-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("SG-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("SG-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("SG-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("SG-ARG-1002", "missing required argument")
)
