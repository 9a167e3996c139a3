// Package handler provides HTTP request handlers for SigMesh.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/internal/core/service"
)

const (
	testSecret = "srv1-secret"
	testCookie = "srv1-reset"
	testIP     = "192.0.2.1"
)

// rawResponse mirrors Response but keeps data undecoded.
type rawResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details any             `json:"details"`
}

type testEnv struct {
	h        *Handler
	sessions *service.SessionManager
	codec    *service.EnvelopeCodec
}

// testHandler creates a handler with clients srv1 (capacity 1) and srv2 (capacity 3).
func testHandler(t testing.TB) *testEnv {
	t.Helper()

	var records []*domain.ClientCredential
	for tid, limit := range map[string]int{"srv1": 1, "srv2": 3} {
		rec, err := service.NewClientCredential(tid, limit, testSecret, testCookie, 1)
		if err != nil {
			t.Fatalf("NewClientCredential(%s) error = %v", tid, err)
		}
		records = append(records, rec)
	}
	creds, err := service.NewCredentialStore(records, 1)
	if err != nil {
		t.Fatalf("NewCredentialStore() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sessions := service.NewSessionManager(&service.SessionManagerConfig{
		Credentials:      creds,
		Tokens:           service.NewTokenIssuer(nil),
		Logger:           logger,
		StrictInvariants: true,
	})
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	codec := service.NewEnvelopeCodec(&service.EnvelopeConfig{Iterations: 1})
	h := New(&Config{
		Sessions:   sessions,
		Envelopes:  codec,
		Logger:     logger,
		MessageTTL: time.Minute,
	})
	return &testEnv{h: h, sessions: sessions, codec: codec}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body []byte) (*httptest.ResponseRecorder, rawResponse) {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	var resp rawResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func (e *testEnv) auth(t *testing.T, tid string) *domain.Bundle {
	t.Helper()

	rec, resp := e.do(t, "POST", "/v1/auth?tid="+tid+"&secret="+testSecret, "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("auth %s: expected status 201, got %d (%s)", tid, rec.Code, resp.Code)
	}
	var b domain.Bundle
	if err := json.Unmarshal(resp.Data, &b); err != nil {
		t.Fatalf("failed to decode bundle: %v", err)
	}
	return &b
}

func (e *testEnv) signed(t *testing.T, salt string, content map[string]any) []byte {
	t.Helper()

	env, err := e.codec.Pack(content, salt, time.Minute)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return body
}

func TestHandler_Health(t *testing.T) {
	e := testHandler(t)

	t.Run("GET /health returns healthy status", func(t *testing.T) {
		rec, resp := e.do(t, "GET", "/health", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		var data HealthResponse
		json.Unmarshal(resp.Data, &data)
		if data.Status != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", data.Status)
		}
	})

	t.Run("GET /ready fails while draining", func(t *testing.T) {
		rec, _ := e.do(t, "GET", "/ready", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}

		e.h.SetDraining(true)
		defer e.h.SetDraining(false)

		rec, resp := e.do(t, "GET", "/ready", "", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}
		if resp.Code != domain.ErrServiceUnavailable.Code {
			t.Errorf("expected code %s, got %s", domain.ErrServiceUnavailable.Code, resp.Code)
		}
	})
}

func TestHandler_Auth(t *testing.T) {
	e := testHandler(t)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing tid", "/v1/auth?secret=" + testSecret, http.StatusBadRequest, domain.ErrMissingArgument.Code},
		{"missing secret", "/v1/auth?tid=srv2", http.StatusBadRequest, domain.ErrMissingArgument.Code},
		{"unknown client", "/v1/auth?tid=nobody&secret=" + testSecret, http.StatusBadRequest, domain.ErrClientNotFound.Code},
		{"wrong secret", "/v1/auth?tid=srv2&secret=wrong", http.StatusBadRequest, domain.ErrInvalidCredential.Code},
		{"legacy auth_token parameter", "/v1/auth?tid=srv2&auth_token=" + testSecret, http.StatusCreated, "OK"},
		{"success", "/v1/auth?tid=srv2&secret=" + testSecret, http.StatusCreated, "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := e.do(t, "POST", tt.target, "", nil)
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if resp.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Code)
			}
		})
	}

	t.Run("GET is not allowed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/auth?tid=srv2&secret="+testSecret, nil)
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", rec.Code)
		}
	})
}

func TestHandler_CapacityLifecycle(t *testing.T) {
	e := testHandler(t)

	first := e.auth(t, "srv1")
	if !domain.IsValidSessionID(first.SessionID) {
		t.Errorf("invalid sid %q", first.SessionID)
	}

	rec, resp := e.do(t, "POST", "/v1/auth?tid=srv1&secret="+testSecret, "", nil)
	if rec.Code != http.StatusBadRequest || resp.Code != domain.ErrCapacityExceeded.Code {
		t.Fatalf("second auth: expected 400 %s, got %d %s", domain.ErrCapacityExceeded.Code, rec.Code, resp.Code)
	}

	rec, resp = e.do(t, "POST", "/v1/"+first.SessionID+"/close_session", first.RefreshToken, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("close: expected status 201, got %d (%s)", rec.Code, resp.Code)
	}
	if string(resp.Data) != "{}" {
		t.Errorf("close: expected empty object, got %s", resp.Data)
	}

	second := e.auth(t, "srv1")
	if second.SessionID == first.SessionID {
		t.Error("expected a new sid after close")
	}

	rec, resp = e.do(t, "POST", "/v1/"+first.SessionID+"/close_session", first.RefreshToken, nil)
	if rec.Code != http.StatusNotFound || resp.Code != domain.ErrSessionNotFound.Code {
		t.Errorf("closed sid: expected 404 %s, got %d %s", domain.ErrSessionNotFound.Code, rec.Code, resp.Code)
	}
}

func TestHandler_RefreshSession(t *testing.T) {
	e := testHandler(t)
	b := e.auth(t, "srv2")

	t.Run("access token is refused", func(t *testing.T) {
		rec, resp := e.do(t, "POST", "/v1/"+b.SessionID+"/refresh_session", b.AccessToken, nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
		if resp.Code != domain.ErrTokenRawMismatch.Code {
			t.Errorf("expected code %s, got %s", domain.ErrTokenRawMismatch.Code, resp.Code)
		}
	})

	t.Run("missing token is refused", func(t *testing.T) {
		rec, resp := e.do(t, "POST", "/v1/"+b.SessionID+"/refresh_session", "", nil)
		if rec.Code != http.StatusForbidden || resp.Code != domain.ErrMissingAuthorization.Code {
			t.Errorf("expected 403 %s, got %d %s", domain.ErrMissingAuthorization.Code, rec.Code, resp.Code)
		}
	})

	t.Run("refresh token rotates the session", func(t *testing.T) {
		rec, resp := e.do(t, "POST", "/v1/"+b.SessionID+"/refresh_session", b.RefreshToken, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d (%s)", rec.Code, resp.Code)
		}
		var rotated domain.Bundle
		json.Unmarshal(resp.Data, &rotated)
		if rotated.SessionID == b.SessionID {
			t.Error("expected a new sid")
		}
		if rotated.Salt == b.Salt {
			t.Error("expected a new salt")
		}
		if e.sessions.ClientCount("srv2") != 1 {
			t.Errorf("expected 1 session, got %d", e.sessions.ClientCount("srv2"))
		}

		rec, _ = e.do(t, "POST", "/v1/"+b.SessionID+"/refresh_session", b.RefreshToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("old sid: expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_IPBinding(t *testing.T) {
	e := testHandler(t)
	b := e.auth(t, "srv2")

	req := httptest.NewRequest("POST", "/v1/"+b.SessionID+"/refresh_session", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	req.Header.Set("Authorization", "Bearer "+b.RefreshToken)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != domain.ErrIPMismatch.Code {
		t.Errorf("expected code %s, got %s", domain.ErrIPMismatch.Code, got)
	}
}

func TestHandler_Status(t *testing.T) {
	e := testHandler(t)
	b := e.auth(t, "srv2")

	body := e.signed(t, b.Salt, map[string]any{"umid": "m-1"})
	rec, resp := e.do(t, "POST", "/v1/"+b.SessionID+"/status", b.AccessToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s %v)", rec.Code, resp.Code, resp.Details)
	}

	reply, err := service.FromRequest(resp.Data)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if err := e.codec.Validate(reply, b.Salt, FieldCommand, FieldMessageID); err != nil {
		t.Fatalf("reply does not validate: %v", err)
	}
	if got := reply.String("tid"); got != "srv2" {
		t.Errorf("expected tid srv2, got %q", got)
	}
	if got := reply.String(FieldMessageID); got != "m-1" {
		t.Errorf("expected umid m-1, got %q", got)
	}
	if err := e.codec.Validate(reply, "other-salt"); err == nil {
		t.Error("reply should not validate with another salt")
	}
}

func TestHandler_Echo(t *testing.T) {
	e := testHandler(t)
	b := e.auth(t, "srv2")

	body := e.signed(t, b.Salt, map[string]any{FieldPayload: map[string]any{"n": 42, "s": "<x>"}})
	rec, resp := e.do(t, "POST", "/v1/"+b.SessionID+"/echo", b.AccessToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rec.Code, resp.Code)
	}

	reply, err := service.FromRequest(resp.Data)
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if err := e.codec.Validate(reply, b.Salt, FieldPayload); err != nil {
		t.Fatalf("reply does not validate: %v", err)
	}
	payload, _ := reply.Get(FieldPayload)
	m, ok := payload.(map[string]any)
	if !ok || m["s"] != "<x>" || m["n"] != json.Number("42") {
		t.Errorf("unexpected payload %#v", payload)
	}
}

func TestHandler_EnvelopeRejections(t *testing.T) {
	e := testHandler(t)
	b := e.auth(t, "srv2")

	tampered := map[string]any{}
	json.Unmarshal(e.signed(t, b.Salt, map[string]any{FieldPayload: "a"}), &tampered)
	tampered[FieldPayload] = "b"
	tamperedBody, _ := json.Marshal(tampered)

	expired, _ := json.Marshal(map[string]any{"exp": 1, "signature": "x", FieldPayload: "a"})

	tests := []struct {
		name   string
		route  string
		token  string
		body   []byte
		status int
		code   string
	}{
		{"not json", "echo", b.AccessToken, []byte("[1,2]"), http.StatusBadRequest, domain.ErrMessageNotJSON.Code},
		{"missing exp", "echo", b.AccessToken, []byte(`{"payload":"a"}`), http.StatusBadRequest, domain.ErrMessageMissingExp.Code},
		{"expired", "echo", b.AccessToken, expired, http.StatusForbidden, domain.ErrMessageExpired.Code},
		{"tampered", "echo", b.AccessToken, tamperedBody, http.StatusForbidden, domain.ErrMessageTampered.Code},
		{"missing payload", "echo", b.AccessToken, e.signed(t, b.Salt, map[string]any{"umid": "x"}), http.StatusBadRequest, domain.ErrMessageMissingFields.Code},
		{"wrong salt", "status", b.AccessToken, e.signed(t, "wrong", map[string]any{}), http.StatusForbidden, domain.ErrMessageTampered.Code},
		{"refresh token on access route", "status", b.RefreshToken, e.signed(t, b.Salt, map[string]any{}), http.StatusForbidden, domain.ErrTokenRawMismatch.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := e.do(t, "POST", "/v1/"+b.SessionID+"/"+tt.route, tt.token, tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if resp.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Code)
			}
		})
	}
}

func TestHandler_Reset(t *testing.T) {
	e := testHandler(t)
	e.auth(t, "srv2")
	e.auth(t, "srv2")

	rec, resp := e.do(t, "POST", "/v1/reset?tid=srv2&reset_cookie=wrong", "", nil)
	if rec.Code != http.StatusBadRequest || resp.Code != domain.ErrInvalidCredential.Code {
		t.Errorf("wrong cookie: expected 400 %s, got %d %s", domain.ErrInvalidCredential.Code, rec.Code, resp.Code)
	}

	rec, resp = e.do(t, "POST", "/v1/reset?tid=srv2&reset_cookie="+testCookie, "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", rec.Code, resp.Code)
	}
	var data ResetResponse
	json.Unmarshal(resp.Data, &data)
	if data.Closed != 2 {
		t.Errorf("expected 2 closed sessions, got %d", data.Closed)
	}
	if n := e.sessions.ClientCount("srv2"); n != 0 {
		t.Errorf("expected no sessions left, got %d", n)
	}
}

func TestHandler_Patterns(t *testing.T) {
	e := testHandler(t)

	got := map[string]bool{}
	for _, p := range e.h.Patterns() {
		got[p] = true
	}
	for _, want := range []string{"POST /v1/auth", "POST /v1/{sid}/status", "GET /health"} {
		if !got[want] {
			t.Errorf("missing pattern %q", want)
		}
	}
}

func TestResponse_Envelope(t *testing.T) {
	t.Run("success response has correct structure", func(t *testing.T) {
		resp := NewResponse("req-123", map[string]string{"key": "value"})

		if resp.Code != "OK" {
			t.Errorf("expected code 'OK', got '%s'", resp.Code)
		}
		if resp.RequestID != "req-123" {
			t.Errorf("expected request_id 'req-123', got '%s'", resp.RequestID)
		}
		if resp.Timestamp == 0 {
			t.Error("expected timestamp to be set")
		}
	})

	t.Run("error response has correct structure", func(t *testing.T) {
		resp := NewErrorResponse("req-456", "SG-SESS-4040", "session not found", nil)

		if resp.Code != "SG-SESS-4040" {
			t.Errorf("expected code 'SG-SESS-4040', got '%s'", resp.Code)
		}
		if resp.Data != nil {
			t.Error("expected data to be nil for error response")
		}
	})
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{"SG-AUTH-4001", http.StatusBadRequest},
		{"SG-AUTH-4003", http.StatusBadRequest},
		{"SG-MSG-4007", http.StatusBadRequest},
		{"SG-SESS-4030", http.StatusForbidden},
		{"SG-TOKN-4035", http.StatusForbidden},
		{"SG-MSG-4037", http.StatusForbidden},
		{"SG-SESS-4040", http.StatusNotFound},
		{"SG-SYS-4290", http.StatusTooManyRequests},
		{"SG-ARG-1002", http.StatusBadRequest},
		{"SG-SYS-5030", http.StatusServiceUnavailable},
		{"SG-SYS-5000", http.StatusInternalServerError},
		{"UNKNOWN", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if status := StatusForCode(tt.code); status != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, status)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.2")

	if got := getClientIP(req, false); got != "10.0.0.1" {
		t.Errorf("untrusted proxy: expected 10.0.0.1, got %s", got)
	}
	if got := getClientIP(req, true); got != "203.0.113.5" {
		t.Errorf("trusted proxy: expected 203.0.113.5, got %s", got)
	}
}

func BenchmarkHandler_Health(b *testing.B) {
	e := testHandler(b)

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
	}
}
