// Package handler provides HTTP request handlers for SigMesh.
package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// Query parameters and message fields.
const (
	ParamClientID    = "tid"
	ParamSecret      = "secret"
	ParamResetCookie = "reset_cookie"

	// paramLegacySecret is accepted when secret is absent.
	paramLegacySecret = "auth_token"

	FieldCommand   = "cmd"
	FieldMessageID = "umid"
	FieldPayload   = "payload"
)

// CloseSessionResponse is the response body for POST /v1/{sid}/close_session.
type CloseSessionResponse struct{}

// ResetResponse is the response body for POST /v1/reset.
type ResetResponse struct {
	Closed int `json:"closed"`
}

// HealthResponse is the response body for /health and /ready.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Time     string `json:"time"`
}
