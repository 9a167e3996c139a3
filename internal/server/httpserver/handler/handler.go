// Package handler provides HTTP request handlers for SigMesh.
package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
	"github.com/yndnr/sigmesh/internal/telemetry/logger"
)

// maxBodyBytes bounds signed request bodies.
const maxBodyBytes = 1 << 20

// Config holds the dependencies of Handler.
type Config struct {
	Sessions  *service.SessionManager
	Envelopes *service.EnvelopeCodec
	Observer  service.Observer
	Logger    *slog.Logger

	// MessageTTL is the lifetime of signed responses (default: 60s).
	MessageTTL time.Duration

	// TrustProxy honours X-Forwarded-For and X-Real-IP.
	TrustProxy bool
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	sessions   *service.SessionManager
	envelopes  *service.EnvelopeCodec
	observer   service.Observer
	logger     *slog.Logger
	messageTTL time.Duration
	trustProxy bool
	draining   atomic.Bool

	mux      *http.ServeMux
	patterns []string
}

// New creates a new Handler with the given services.
func New(cfg *Config) *Handler {
	h := &Handler{
		sessions:   cfg.Sessions,
		envelopes:  cfg.Envelopes,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		messageTTL: cfg.MessageTTL,
		trustProxy: cfg.TrustProxy,
		mux:        http.NewServeMux(),
	}
	if h.envelopes == nil {
		h.envelopes = service.NewEnvelopeCodec(nil)
	}
	if h.observer == nil {
		h.observer = service.NopObserver()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.messageTTL <= 0 {
		h.messageTTL = service.DefaultMessageTTL
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Patterns returns the route patterns served by the handler.
func (h *Handler) Patterns() []string {
	return append([]string(nil), h.patterns...)
}

// SetDraining marks the server as shutting down; /ready then fails.
func (h *Handler) SetDraining(v bool) {
	h.draining.Store(v)
}

func (h *Handler) handle(pattern string, handler http.Handler) {
	h.patterns = append(h.patterns, pattern)
	h.mux.Handle(pattern, handler)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.handle("GET /health", http.HandlerFunc(h.handleHealth))
	h.handle("GET /ready", http.HandlerFunc(h.handleReady))

	h.handle("POST /v1/auth", http.HandlerFunc(h.handleAuth))
	h.handle("POST /v1/reset", http.HandlerFunc(h.handleReset))

	refresh := h.SessionGuard(domain.TokenRefresh)
	h.handle("POST /v1/{sid}/refresh_session", refresh(http.HandlerFunc(h.handleRefreshSession)))
	h.handle("POST /v1/{sid}/close_session", refresh(http.HandlerFunc(h.handleCloseSession)))

	access := h.SessionGuard(domain.TokenAccess)
	h.handle("POST /v1/{sid}/status", access(h.EnvelopeGuard()(http.HandlerFunc(h.handleStatus))))
	h.handle("POST /v1/{sid}/echo", access(h.EnvelopeGuard(FieldPayload)(http.HandlerFunc(h.handleEcho))))
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	WriteError(w, logger.RequestIDFromContext(r.Context()), status, code, message, details)
}

// WriteError writes an error response envelope. It is shared with the
// middleware layer so every error body has the same shape.
func WriteError(w http.ResponseWriter, requestID string, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details))
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := domain.AsDomainError(err); ok {
		var details any
		if de.Details != "" {
			details = de.Details
		}
		status := StatusForCode(de.Code)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "code", de.Code, "error", err)
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// StatusForCode maps an error code to an HTTP status.
//
// The numeric suffix of SG-{CATEGORY}-{NNNN} carries the class:
// 400x-402x are 400, 403x 403, 404x 404, 429x 429, 503x 503.
// Argument errors (SG-ARG-1xxx) are 400. Everything else is 500.
func StatusForCode(code string) int {
	if strings.HasPrefix(code, "SG-ARG-") {
		return http.StatusBadRequest
	}
	idx := strings.LastIndex(code, "-")
	n, err := strconv.Atoi(code[idx+1:])
	if err != nil {
		return http.StatusInternalServerError
	}
	switch {
	case n >= 4030 && n < 4040:
		return http.StatusForbidden
	case n >= 4040 && n < 4050:
		return http.StatusNotFound
	case n >= 4290 && n < 4300:
		return http.StatusTooManyRequests
	case n >= 4000 && n < 4030:
		return http.StatusBadRequest
	case n >= 5030 && n < 5040:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// getClientIP extracts client IP from request.
// Proxy headers are honoured only when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
