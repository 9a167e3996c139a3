// Package handler provides HTTP request handlers for SigMesh.
package handler

import (
	"net/http"
)

// handleStatus handles POST /v1/{sid}/status.
//
// The reply is a signed message describing the session.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	req := EnvelopeFromContext(r.Context())

	content := map[string]any{
		FieldCommand:         "status",
		"sid":                session.ID,
		"tid":                session.ClientID,
		"sessions":           h.sessions.ClientCount(session.ClientID),
		"access_expires_at":  session.AccessToken.ExpiresAt.Unix(),
		"refresh_expires_at": session.RefreshToken.ExpiresAt.Unix(),
	}
	if umid, ok := req.Get(FieldMessageID); ok && umid != nil {
		content[FieldMessageID] = umid
	}

	h.reply(w, r, content)
}

// handleEcho handles POST /v1/{sid}/echo.
//
// The reply is a signed message returning the request payload unchanged.
func (h *Handler) handleEcho(w http.ResponseWriter, r *http.Request) {
	req := EnvelopeFromContext(r.Context())

	payload, _ := req.Get(FieldPayload)
	content := map[string]any{
		FieldCommand: "echo",
		FieldPayload: payload,
	}
	if umid, ok := req.Get(FieldMessageID); ok && umid != nil {
		content[FieldMessageID] = umid
	}

	h.reply(w, r, content)
}

// reply signs content with the session salt and writes it.
func (h *Handler) reply(w http.ResponseWriter, r *http.Request, content map[string]any) {
	session := SessionFromContext(r.Context())

	env, err := h.envelopes.Pack(content, session.Salt, h.messageTTL)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, env)
}
