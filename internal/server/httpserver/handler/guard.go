// Package handler provides HTTP request handlers for SigMesh.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
	"github.com/yndnr/sigmesh/internal/telemetry/logger"
)

type contextKey int

const (
	sessionKey contextKey = iota
	envelopeKey
)

// SessionFromContext returns the session authorized by SessionGuard.
func SessionFromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey).(*domain.Session)
	return s
}

// EnvelopeFromContext returns the message validated by EnvelopeGuard.
func EnvelopeFromContext(ctx context.Context) *service.Envelope {
	e, _ := ctx.Value(envelopeKey).(*service.Envelope)
	return e
}

// SessionGuard admits a request only if the {sid} path value names a live
// session bound to the caller's IP and the bearer token is that session's
// live token of kind.
func (h *Handler) SessionGuard(kind domain.TokenKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := h.sessions.Authorize(r.Context(), &service.AuthorizeRequest{
				SessionID: r.PathValue("sid"),
				ClientIP:  getClientIP(r, h.trustProxy),
				Kind:      kind,
				Token:     bearerToken(r),
			})
			if err != nil {
				h.handleServiceError(w, r, err)
				return
			}

			ctx := logger.TagSession(r.Context(), session.ClientID, session.ID)
			ctx = context.WithValue(ctx, sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EnvelopeGuard admits a request only if its body is a fresh message signed
// with the session salt that carries every required field. It must run
// after SessionGuard.
func (h *Handler) EnvelopeGuard(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil {
				h.handleServiceError(w, r, domain.ErrInternalServer.WithDetails("envelope guard without session"))
				return
			}

			env, err := h.readEnvelope(r)
			if err == nil {
				err = h.envelopes.Validate(env, session.Salt, required...)
			}
			if err != nil {
				h.observer.EnvelopeRejected(service.RejectionReason(err))
				h.handleServiceError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), envelopeKey, env)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) readEnvelope(r *http.Request) (*service.Envelope, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, domain.ErrMessageNotJSON.WithCause(err)
	}
	if len(body) > maxBodyBytes {
		return nil, domain.ErrMessageNotJSON.WithDetails("body too large")
	}
	return service.FromRequest(body)
}
