package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/filelink-go/internal/core/domain"
	"github.com/yndnr/filelink-go/internal/core/service"
	"github.com/yndnr/filelink-go/internal/storage/memory"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// failingStore fails every operation with a storage error.
type failingStore struct{}

func (failingStore) Insert(context.Context, domain.Reference, int) (string, error) {
	return "", domain.ErrStorageError.WithCause(errors.New("disk full"))
}

func (failingStore) Consume(context.Context, string) (domain.Reference, error) {
	return domain.Reference{}, domain.ErrStorageError.WithCause(errors.New("disk full"))
}

func (failingStore) Sweep(context.Context, time.Duration) (int, error) {
	return 0, errors.New("plain failure")
}

func (failingStore) TTL() time.Duration { return time.Hour }

type testEnv struct {
	router http.Handler
	store  *memory.Store
	now    time.Time
	clock  *time.Time
}

func newTestEnv(t *testing.T, pinger Pinger) *testEnv {
	t.Helper()

	env := &testEnv{store: memory.New(), now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	clock := env.now
	env.clock = &clock

	svc := service.NewLinkService(env.store, service.LinkConfig{
		TTL: 24 * time.Hour,
		Now: func() time.Time { return *env.clock },
	})
	h := New(svc, pinger, Config{BotUsername: "testbot", Version: "1.2.3"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env.router = mount(h)
	return env
}

func mount(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Post("/api/v1/links", h.CreateLink)
	r.Post("/api/v1/links/{token}/consume", h.ConsumeLink)
	r.Get("/api/v1/links/{token}/qr.png", h.LinkQR)
	r.Post("/admin/v1/sweep", h.Sweep)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func createLink(t *testing.T, h http.Handler, maxUses int) CreateLinkResponse {
	t.Helper()

	body := `{"chat_id": -1001234567890, "message_id": 42, "max_uses": ` + jsonInt(maxUses) + `}`
	rec, resp := do(t, h, http.MethodPost, "/api/v1/links", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out CreateLinkResponse
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := do(t, env.router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", resp.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "1.2.3", data["version"])
}

func TestReady(t *testing.T) {
	t.Run("backend up", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		rec, _ := do(t, env.router, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("backend down", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{err: errors.New("connection refused")})
		rec, resp := do(t, env.router, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, domain.ErrServiceUnavailable.Code, resp.Code)
	})
}

func TestCreateLink(t *testing.T) {
	env := newTestEnv(t, nil)

	out := createLink(t, env.router, 3)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, 3, out.MaxUses)
	assert.Equal(t, "https://t.me/testbot?start="+out.Token, out.DeepLink)

	entry, err := env.store.Get(context.Background(), out.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Reference{ChatID: -1001234567890, MessageID: 42}, entry.Reference)
	assert.Equal(t, 3, entry.MaxUses)
}

func TestCreateLink_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"chat_id":`, domain.ErrBadRequest.Code},
		{"unknown field", `{"chat_id": 1, "message_id": 2, "ttl": 5}`, domain.ErrBadRequest.Code},
		{"negative max uses", `{"chat_id": 1, "message_id": 2, "max_uses": -1}`, domain.ErrInvalidArgument.Code},
		{"zero chat", `{"chat_id": 0, "message_id": 2}`, domain.ErrInvalidArgument.Code},
		{"missing message", `{"chat_id": 7}`, domain.ErrInvalidArgument.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, env.router, http.MethodPost, "/api/v1/links", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantCode, rec.Header().Get("X-Error-Code"))
		})
	}
	assert.Zero(t, env.store.Count())
}

func TestConsumeLink(t *testing.T) {
	env := newTestEnv(t, nil)
	link := createLink(t, env.router, 1)

	rec, resp := do(t, env.router, http.MethodPost, "/api/v1/links/"+link.Token+"/consume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, -1001234567890, data["chat_id"])
	assert.EqualValues(t, 42, data["message_id"])

	// Single use: the second consume looks exactly like an unknown token.
	rec, second := do(t, env.router, http.MethodPost, "/api/v1/links/"+link.Token+"/consume", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, unknown := do(t, env.router, http.MethodPost, "/api/v1/links/AAAAAAAAAAAAAAAAAAAAAA/consume", "")
	assert.Equal(t, unknown.Code, second.Code)
	assert.Equal(t, unknown.Message, second.Message)
}

func TestConsumeLink_Expired(t *testing.T) {
	env := newTestEnv(t, nil)
	link := createLink(t, env.router, 0)

	*env.clock = env.now.Add(24*time.Hour + time.Second)

	rec, resp := do(t, env.router, http.MethodPost, "/api/v1/links/"+link.Token+"/consume", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrLinkNotFound.Code, resp.Code)
}

func TestConsumeLink_Malformed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := do(t, env.router, http.MethodPost, "/api/v1/links/not%20a%20token/consume", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrLinkNotFound.Code, resp.Code)
}

func TestLinkQR(t *testing.T) {
	env := newTestEnv(t, nil)
	link := createLink(t, env.router, 1)

	rec, _ := do(t, env.router, http.MethodGet, "/api/v1/links/"+link.Token+"/qr.png?size=128", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	// Rendering the code must not spend the single use.
	rec, _ = do(t, env.router, http.MethodPost, "/api/v1/links/"+link.Token+"/consume", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLinkQR_BadInput(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := do(t, env.router, http.MethodGet, "/api/v1/links/AAAAAAAAAAAAAAAAAAAAAA/qr.png?size=9000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, env.router, http.MethodGet, "/api/v1/links/bad$token/qr.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweep(t *testing.T) {
	env := newTestEnv(t, nil)
	createLink(t, env.router, 1)
	createLink(t, env.router, 1)

	*env.clock = env.now.Add(2 * time.Hour)
	fresh := createLink(t, env.router, 1)

	rec, resp := do(t, env.router, http.MethodPost, "/admin/v1/sweep", `{"ttl_seconds": 3600}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 2, data["deleted"])
	assert.EqualValues(t, 3600, data["ttl_seconds"])

	_, err := env.store.Get(context.Background(), fresh.Token)
	assert.NoError(t, err)

	// Empty body falls back to the configured TTL.
	rec, resp = do(t, env.router, http.MethodPost, "/admin/v1/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = resp.Data.(map[string]any)
	assert.EqualValues(t, 0, data["deleted"])
	assert.EqualValues(t, 86400, data["ttl_seconds"])

	rec, _ = do(t, env.router, http.MethodPost, "/admin/v1/sweep", `{"ttl_seconds": -5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSweep_TTLOverflowRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	link := createLink(t, env.router, 0)
	*env.clock = env.now.Add(5 * time.Second)

	// 18446744074s wraps to about 290ms when multiplied into a Duration.
	rec, resp := do(t, env.router, http.MethodPost, "/admin/v1/sweep", `{"ttl_seconds": 18446744074}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrInvalidArgument.Code, resp.Code)

	_, err := env.store.Get(context.Background(), link.Token)
	assert.NoError(t, err, "link must survive a rejected sweep")
}

func TestStorageFailures(t *testing.T) {
	h := New(failingStore{}, nil, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	router := mount(h)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/links", `{"chat_id": 1, "message_id": 1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.ErrStorageError.Code, resp.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")

	rec, _ = do(t, router, http.MethodPost, "/api/v1/links/AAAAAAAAAAAAAAAAAAAAAA/consume", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, resp = do(t, router, http.MethodPost, "/admin/v1/sweep", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.ErrInternalServer.Code, resp.Code)
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.ErrLinkNotFound.Code, http.StatusNotFound},
		{domain.ErrTokenConflict.Code, http.StatusConflict},
		{domain.ErrStoreExhausted.Code, http.StatusInsufficientStorage},
		{domain.ErrStorageError.Code, http.StatusInternalServerError},
		{domain.ErrServiceUnavailable.Code, http.StatusServiceUnavailable},
		{domain.ErrBadRequest.Code, http.StatusBadRequest},
		{domain.ErrUnauthorized.Code, http.StatusUnauthorized},
		{domain.ErrRateLimited.Code, http.StatusTooManyRequests},
		{domain.ErrInvalidArgument.Code, http.StatusBadRequest},
		{domain.ErrMissingArgument.Code, http.StatusBadRequest},
		{"garbage", http.StatusInternalServerError},
		{"FL-X-12", http.StatusInternalServerError},
		{"FL-X-2000", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForCode(tt.code), tt.code)
	}
}
