// Package handler provides HTTP request handlers for SigMesh.
package handler

import (
	"net/http"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
)

// handleAuth handles POST /v1/auth?tid=&secret=.
func (h *Handler) handleAuth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tid := q.Get(ParamClientID)
	secret := q.Get(ParamSecret)
	if secret == "" {
		secret = q.Get(paramLegacySecret)
	}
	if tid == "" || secret == "" {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrMissingArgument.Code,
			domain.ErrMissingArgument.Message, "tid and secret are required")
		return
	}

	session, err := h.sessions.Authenticate(r.Context(), &service.AuthenticateRequest{
		ClientID: tid,
		Secret:   secret,
		ClientIP: getClientIP(r, h.trustProxy),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, session.Bundle())
}

// handleRefreshSession handles POST /v1/{sid}/refresh_session.
func (h *Handler) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	rotated, err := h.sessions.Rotate(r.Context(), session.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, rotated.Bundle())
}

// handleCloseSession handles POST /v1/{sid}/close_session.
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	if err := h.sessions.Close(r.Context(), session.ID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, CloseSessionResponse{})
}

// handleReset handles POST /v1/reset?tid=&reset_cookie=.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tid := q.Get(ParamClientID)
	cookie := q.Get(ParamResetCookie)
	if tid == "" || cookie == "" {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrMissingArgument.Code,
			domain.ErrMissingArgument.Message, "tid and reset_cookie are required")
		return
	}

	closed, err := h.sessions.ResetClient(r.Context(), &service.ResetClientRequest{
		ClientID:    tid,
		ResetCookie: cookie,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, ResetResponse{Closed: closed})
}
