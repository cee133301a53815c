package httpserver

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/filelink-go/internal/telemetry/metric"
	"github.com/yndnr/filelink-go/pkg/token"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestIDFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates request ID when not provided", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		requestID := rec.Header().Get(HeaderRequestID)
		if !strings.HasPrefix(requestID, "req-") || len(requestID) != len("req-")+26 {
			t.Errorf("expected req-<ulid>, got %q", requestID)
		}
		if seen != requestID {
			t.Errorf("context request ID = %q, header = %q", seen, requestID)
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(HeaderRequestID, "existing-id-123")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(HeaderRequestID); got != "existing-id-123" {
			t.Errorf("expected existing-id-123, got %s", got)
		}
	})

	t.Run("replaces hostile request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(HeaderRequestID, "id\nwith newline")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(HeaderRequestID); !strings.HasPrefix(got, "req-") {
			t.Errorf("expected generated ID, got %q", got)
		}
	})

	t.Run("unique per request", func(t *testing.T) {
		ids := make(map[string]bool)
		for i := 0; i < 100; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))
			ids[rec.Header().Get(HeaderRequestID)] = true
		}
		if len(ids) != 100 {
			t.Errorf("expected 100 unique IDs, got %d", len(ids))
		}
	})
}

func TestRateLimit(t *testing.T) {
	l := newIPLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	handler := rateLimit(l)(okHandler)

	request := func(ip string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if request("10.0.0.1") != http.StatusOK || request("10.0.0.1") != http.StatusOK {
		t.Fatal("burst requests should pass")
	}
	if code := request("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", code)
	}
	if code := request("10.0.0.2"); code != http.StatusOK {
		t.Errorf("other client = %d, want 200", code)
	}

	now = now.Add(time.Second)
	if code := request("10.0.0.1"); code != http.StatusOK {
		t.Errorf("after refill = %d, want 200", code)
	}
}

func TestRateLimit_EvictsIdleClients(t *testing.T) {
	l := newIPLimiter(10, 10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")
	if l.size() != 2 {
		t.Fatalf("size = %d, want 2", l.size())
	}

	now = now.Add(5 * time.Minute)
	l.allow("10.0.0.3")
	if l.size() != 1 {
		t.Errorf("size after eviction = %d, want 1", l.size())
	}
}

func TestRateLimit_ResponseBody(t *testing.T) {
	handler := RateLimit(0.001, 1)(okHandler)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rec.Header().Get("X-Error-Code") != "FL-SYS-4290" {
		t.Errorf("X-Error-Code = %q", rec.Header().Get("X-Error-Code"))
	}
}

func TestAdminAuth(t *testing.T) {
	log, buf := newTestLogger()
	handler := AdminAuth(token.Hash("s3cret-admin"), log)(okHandler)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bearer ok", "Authorization", "Bearer s3cret-admin", http.StatusOK},
		{"header ok", "X-Admin-Token", "s3cret-admin", http.StatusOK},
		{"wrong token", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "Authorization", "Basic s3cret-admin", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/admin/v1/sweep", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if !strings.Contains(buf.String(), "admin authentication failed") {
		t.Error("expected failed attempt to be logged")
	}
	if strings.Contains(buf.String(), "nope") {
		t.Error("presented token leaked into logs")
	}
}

func TestAdminAuth_Disabled(t *testing.T) {
	log, _ := newTestLogger()
	handler := AdminAuth("", log)(okHandler)

	req := httptest.NewRequest("POST", "/admin/v1/sweep", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRecover(t *testing.T) {
	log, buf := newTestLogger()
	handler := Recover(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("panic not logged")
	}
}

func TestAudit(t *testing.T) {
	log, buf := newTestLogger()

	r := chi.NewRouter()
	r.Use(RequestID(), Audit(log))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/items/abc", nil))

	out := buf.String()
	for _, want := range []string{"request completed with client error", "route=/items/{id}", "status=418", "request_id=req-"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit log missing %q: %s", want, out)
		}
	}
}

func TestMetricsMiddleware(t *testing.T) {
	reg := metric.NewRegistry()

	r := chi.NewRouter()
	r.Use(Metrics(reg))
	r.Post("/api/v1/links/{token}/consume", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, tok := range []string{"aaa", "bbb", "ccc"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/links/"+tok+"/consume", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	got := testutil.ToFloat64(reg.HTTPRequests.WithLabelValues("POST", "/api/v1/links/{token}/consume", "404"))
	if got != 3 {
		t.Errorf("consume requests = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(reg.HTTPRequests); n != 2 {
		t.Errorf("series = %d, want 2 (tokens must not become labels)", n)
	}
}

func TestClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "fd00::1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.168.1.1:12345", nil, "192.168.1.1"},
		{"ipv6", "[::1]:8080", nil, "::1"},
		{"no port", "192.168.1.1", nil, "192.168.1.1"},
		{"forwarded by trusted proxy", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"}, "203.0.113.5"},
		{"rightmost untrusted hop wins", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.5"}, "203.0.113.5"},
		{"real ip from trusted proxy", "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"trusted ipv6 proxy", "[fd00::1]:443", map[string]string{"X-Forwarded-For": "2001:db8::7"}, "2001:db8::7"},
		{"forwarded by untrusted peer", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5"}, "192.168.1.1"},
		{"real ip from untrusted peer", "192.168.1.1:1", map[string]string{"X-Real-IP": "203.0.113.9"}, "192.168.1.1"},
		{"garbage forwarded value", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIP(trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = getClientIP(r)
			}))
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("client ip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetClientIP_IgnoresHeadersWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.1:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	if got := getClientIP(req); got != "192.168.1.1" {
		t.Errorf("getClientIP() = %q, want peer address", got)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8, 127.0.0.1", "", "::ffff:192.0.2.1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d prefixes, want 3: %v", len(got), got)
	}
	if got[1].Bits() != 32 || got[2].Addr().String() != "192.0.2.1" {
		t.Errorf("unexpected prefixes %v", got)
	}

	for _, bad := range []string{"10.0.0.0/33", "proxy.local"} {
		if _, err := ParseTrustedProxies([]string{bad}); err == nil {
			t.Errorf("ParseTrustedProxies(%q) should fail", bad)
		}
	}
}

func TestRateLimit_SpoofedForwardedForIgnored(t *testing.T) {
	handler := ClientIP(nil)(RateLimit(1, 2)(okHandler))

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "192.168.1.50:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests should pass, got %v", codes)
	}
	for _, c := range codes[2:] {
		if c != http.StatusTooManyRequests {
			t.Errorf("rotating X-Forwarded-For escaped the limiter: %v", codes)
			break
		}
	}
}

func TestRateLimit_TrustedProxyForwardsPerClient(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	handler := ClientIP(trusted)(RateLimit(1, 1)(okHandler))

	request := func(client string) int {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := request("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first client = %d, want 200", code)
	}
	if code := request("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("first client again = %d, want 429", code)
	}
	if code := request("203.0.113.2"); code != http.StatusOK {
		t.Errorf("second client behind proxy = %d, want 200", code)
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, _ = w.Write([]byte("ok"))
	w.WriteHeader(http.StatusInternalServerError)

	if w.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", w.statusCode)
	}
}
