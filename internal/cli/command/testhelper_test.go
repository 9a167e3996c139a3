package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

// newMockServer creates a new mock server closed at test cleanup.
func newMockServer(t *testing.T) *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Longest matching suffix wins so "/refresh_session" beats "/".
		var best string
		for pattern := range m.handlers {
			if strings.HasSuffix(r.URL.Path, pattern) && len(pattern) > len(best) {
				best = pattern
			}
		}
		if best == "" {
			http.NotFound(w, r)
			return
		}
		m.handlers[best](w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for paths ending in suffix.
func (m *mockServer) handle(suffix string, handler http.HandlerFunc) {
	m.handlers[suffix] = handler
}

// jsonResponse writes a success response envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       "OK",
		"message":    "Success",
		"request_id": "test",
		"data":       data,
	})
}

// errorResponse writes an error response envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":       code,
		"message":    message,
		"request_id": "test",
	})
}

// cliEnv isolates a CLI run from the user's ~/.sigmesh.
type cliEnv struct {
	dir    string
	server string
	stdin  string
}

func newCLIEnv(t *testing.T, server string) *cliEnv {
	t.Helper()
	return &cliEnv{dir: t.TempDir(), server: server}
}

func (e *cliEnv) sessionFile() string { return filepath.Join(e.dir, "session.yaml") }
func (e *cliEnv) configFile() string  { return filepath.Join(e.dir, "cli.yaml") }

// run executes the CLI with args after the isolating global flags and
// returns what the command wrote to stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	app := App()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(e.stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := []string{"sigmesh-cli",
		"--config", e.configFile(),
		"--session-file", e.sessionFile(),
		"--iterations", "1",
	}
	if e.server != "" {
		full = append(full, "--server", e.server)
	}
	full = append(full, args...)

	err := app.Run(full)
	return stdout.String(), err
}

// mustRun is run that fails the test on error.
func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

// decodeJSON decodes out into v, failing the test on error.
func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
}

// readFile returns the contents of path, failing the test on error.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
