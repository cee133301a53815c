package command

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"
)

// mockServer is a test HTTP server dispatching on "METHOD /path" prefixes.
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []*http.Request
	bodies   []string
}

func newMockServer(t *testing.T) *mockServer {
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, r)
		m.bodies = append(m.bodies, string(body))
		var match http.HandlerFunc
		for pattern, h := range m.handlers {
			method, path, _ := strings.Cut(pattern, " ")
			if r.Method == method && strings.HasPrefix(r.URL.Path, path) {
				match = h
				break
			}
		}
		m.mu.Unlock()

		if match == nil {
			errorResponse(w, http.StatusNotFound, "FL-SYS-4040", "route not found")
			return
		}
		match(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) handle(pattern string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = h
}

func (m *mockServer) lastRequest(t *testing.T) (*http.Request, string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("no request received")
	}
	n := len(m.requests) - 1
	return m.requests[n], m.bodies[n]
}

// dataResponse writes a success envelope around data.
func dataResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    "OK",
		"message": "Success",
		"data":    data,
	})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// runCLI runs the full app against server with an isolated config file
// and returns what the command wrote.
func runCLI(t *testing.T, server *mockServer, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := []string{"filelink-cli", "--config", filepath.Join(t.TempDir(), "cli.yaml")}
	if server != nil {
		full = append(full, "--server", server.URL)
	}
	full = append(full, args...)

	err := app.Run(full)
	return out.String(), err
}
