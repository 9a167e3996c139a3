// Package handler provides HTTP request handlers for SigMesh.
package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Sessions: h.sessions.Count(),
		Time:     time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code,
			domain.ErrServiceUnavailable.Message, "shutting down")
		return
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:   "ready",
		Sessions: h.sessions.Count(),
		Time:     time.Now().UTC().Format(time.RFC3339),
	})
}
