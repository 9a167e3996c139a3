package command

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/sigmesh/internal/cli/config"
	"github.com/yndnr/sigmesh/internal/cli/connection"
	"github.com/yndnr/sigmesh/internal/core/domain"
)

const (
	firstSID  = "AAAAAAAAAAAAAAAAAAAAAAAA"
	secondSID = "BBBBBBBBBBBBBBBBBBBBBBBB"
)

func sampleBundle(sid string) *domain.Bundle {
	return &domain.Bundle{
		SessionID:    sid,
		Salt:         strings.Repeat("ab", 64),
		AccessToken:  "access." + sid,
		RefreshToken: "refresh." + sid,
	}
}

func TestSessionAuth(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("/v1/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		q := r.URL.Query()
		if q.Get("tid") != "srv1" || q.Get("secret") != "s3cret" {
			errorResponse(w, http.StatusBadRequest, domain.ErrInvalidCredential.Code, domain.ErrInvalidCredential.Message)
			return
		}
		jsonResponse(w, http.StatusCreated, sampleBundle(firstSID))
	})
	env := newCLIEnv(t, srv.URL)

	t.Run("saves session", func(t *testing.T) {
		out := env.mustRun(t, "session", "auth", "--tid", "srv1", "--secret", "s3cret")
		if !strings.Contains(out, firstSID) {
			t.Errorf("output = %q, want sid", out)
		}
		if strings.Contains(out, "refresh."+firstSID) {
			t.Errorf("tokens shown without --wide: %q", out)
		}

		state, err := config.LoadSession(env.sessionFile())
		if err != nil {
			t.Fatalf("LoadSession() error = %v", err)
		}
		if state.SessionID != firstSID || state.ClientID != "srv1" || state.Server != srv.URL {
			t.Errorf("state = %+v", state)
		}
		if state.RefreshToken != "refresh."+firstSID {
			t.Errorf("RefreshToken = %q", state.RefreshToken)
		}
	})

	t.Run("show wide", func(t *testing.T) {
		out := env.mustRun(t, "--wide", "session", "show")
		if !strings.Contains(out, "access."+firstSID) {
			t.Errorf("output = %q, want access token", out)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		_, err := env.run(t, "session", "auth", "--tid", "srv1", "--secret", "wrong")
		if got := connection.ErrorCode(err); got != domain.ErrInvalidCredential.Code {
			t.Errorf("ErrorCode(%v) = %q, want %q", err, got, domain.ErrInvalidCredential.Code)
		}
	})

	t.Run("no-save", func(t *testing.T) {
		other := newCLIEnv(t, srv.URL)
		other.mustRun(t, "session", "auth", "--tid", "srv1", "--secret", "s3cret", "--no-save")
		if _, err := config.LoadSession(other.sessionFile()); !errors.Is(err, config.ErrNoSession) {
			t.Errorf("LoadSession() error = %v, want ErrNoSession", err)
		}
	})
}

func TestSessionRefreshAndClose(t *testing.T) {
	srv := newMockServer(t)
	closed := 0
	srv.handle("/refresh_session", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/"+firstSID+"/refresh_session" {
			errorResponse(w, http.StatusNotFound, domain.ErrSessionNotFound.Code, "session not found")
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer refresh."+firstSID {
			t.Errorf("Authorization = %q", got)
		}
		jsonResponse(w, http.StatusCreated, sampleBundle(secondSID))
	})
	srv.handle("/close_session", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/"+secondSID+"/close_session" || closed > 0 {
			errorResponse(w, http.StatusNotFound, domain.ErrSessionNotFound.Code, "session not found")
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer refresh."+secondSID {
			t.Errorf("Authorization = %q", got)
		}
		closed++
		jsonResponse(w, http.StatusCreated, map[string]any{})
	})

	env := newCLIEnv(t, "")
	if err := config.SaveSession(config.NewSessionState(srv.URL, "srv1", sampleBundle(firstSID)), env.sessionFile()); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "-o", "json", "session", "refresh")
	var view sessionView
	decodeJSON(t, out, &view)
	if view.SessionID != secondSID {
		t.Errorf("sid = %q, want %q", view.SessionID, secondSID)
	}

	state, err := config.LoadSession(env.sessionFile())
	if err != nil {
		t.Fatal(err)
	}
	if state.SessionID != secondSID || state.ClientID != "srv1" {
		t.Errorf("state after refresh = %+v", state)
	}

	out = env.mustRun(t, "session", "close")
	if !strings.Contains(out, "Session "+secondSID+" closed") {
		t.Errorf("output = %q", out)
	}
	if closed != 1 {
		t.Errorf("close calls = %d, want 1", closed)
	}
	if _, err := config.LoadSession(env.sessionFile()); !errors.Is(err, config.ErrNoSession) {
		t.Errorf("state after close: %v, want ErrNoSession", err)
	}

	if _, err := env.run(t, "session", "close"); !errors.Is(err, config.ErrNoSession) {
		t.Errorf("second close error = %v, want ErrNoSession", err)
	}
}

func TestSessionClose_AlreadyGone(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("/close_session", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, domain.ErrSessionNotFound.Code, "session not found")
	})

	env := newCLIEnv(t, "")
	if err := config.SaveSession(config.NewSessionState(srv.URL, "srv1", sampleBundle(firstSID)), env.sessionFile()); err != nil {
		t.Fatal(err)
	}

	env.mustRun(t, "session", "close")
	if _, err := config.LoadSession(env.sessionFile()); !errors.Is(err, config.ErrNoSession) {
		t.Errorf("state kept after 404 close: %v", err)
	}
}

func TestSessionClose_Forbidden(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("/close_session", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusForbidden, domain.ErrIPMismatch.Code, domain.ErrIPMismatch.Message)
	})

	env := newCLIEnv(t, "")
	if err := config.SaveSession(config.NewSessionState(srv.URL, "srv1", sampleBundle(firstSID)), env.sessionFile()); err != nil {
		t.Fatal(err)
	}

	_, err := env.run(t, "session", "close")
	if got := connection.ErrorCode(err); got != domain.ErrIPMismatch.Code {
		t.Errorf("ErrorCode = %q, want %q", got, domain.ErrIPMismatch.Code)
	}
	if _, err := config.LoadSession(env.sessionFile()); err != nil {
		t.Errorf("state removed after failed close: %v", err)
	}
}

func TestSessionReset(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("/v1/reset", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("tid") != "srv1" || q.Get("reset_cookie") != "cookie" {
			errorResponse(w, http.StatusBadRequest, domain.ErrInvalidCredential.Code, "invalid credential")
			return
		}
		jsonResponse(w, http.StatusCreated, map[string]int{"closed": 2})
	})

	env := newCLIEnv(t, srv.URL)
	if err := config.SaveSession(config.NewSessionState(srv.URL, "srv1", sampleBundle(firstSID)), env.sessionFile()); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "-o", "json", "session", "reset", "--tid", "srv1", "--reset-cookie", "cookie")
	var result struct {
		Closed int `json:"closed"`
	}
	decodeJSON(t, out, &result)
	if result.Closed != 2 {
		t.Errorf("closed = %d, want 2", result.Closed)
	}
	if _, err := config.LoadSession(env.sessionFile()); !errors.Is(err, config.ErrNoSession) {
		t.Errorf("state after reset: %v, want ErrNoSession", err)
	}

	if _, err := env.run(t, "session", "reset", "--tid", "srv1", "--reset-cookie", "nope"); err == nil {
		t.Error("expected error for wrong reset cookie")
	}
}

func TestSessionCommand_RequiredFlags(t *testing.T) {
	env := newCLIEnv(t, "localhost:1")
	if _, err := env.run(t, "session", "auth", "--tid", "srv1"); err == nil {
		t.Error("expected error without --secret")
	}
}
