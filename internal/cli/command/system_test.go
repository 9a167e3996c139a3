package command

import (
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/sigmesh/internal/core/domain"
)

func TestSystemProbes(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{"status": "healthy", "sessions": 3, "time": "2026-01-01T00:00:00Z"})
	})
	srv.handle("/ready", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "service unavailable")
	})
	env := newCLIEnv(t, srv.URL)

	out := env.mustRun(t, "system", "health")
	if !strings.Contains(out, "Server is healthy (3 active sessions)") {
		t.Errorf("health = %q", out)
	}

	out = env.mustRun(t, "-o", "json", "system", "health")
	var result probeResult
	decodeJSON(t, out, &result)
	if result.Status != "healthy" || result.Sessions != 3 {
		t.Errorf("health json = %+v", result)
	}

	_, err := env.run(t, "system", "ready")
	if err == nil || !strings.Contains(err.Error(), domain.ErrServiceUnavailable.Code) {
		t.Errorf("ready error = %v, want %s", err, domain.ErrServiceUnavailable.Code)
	}
}

func TestSystemVersion(t *testing.T) {
	env := newCLIEnv(t, "")
	out := env.mustRun(t, "system", "version")
	for _, field := range []string{"version", "commit", "go_version"} {
		if !strings.Contains(out, field) {
			t.Errorf("version output missing %q: %q", field, out)
		}
	}
}
