package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/imf-phoenix/gadgetd/internal/audit"
	"github.com/imf-phoenix/gadgetd/internal/auth"
	"github.com/imf-phoenix/gadgetd/internal/gadget"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/database"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/logging"
	_ "github.com/imf-phoenix/gadgetd/migrations" // registers embedded schema
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testSelfDestructDelay keeps timer-driven tests fast.
const testSelfDestructDelay = 50 * time.Millisecond

type testEnv struct {
	srv     *Server
	router  http.Handler
	db      *database.DB
	tokens  *auth.TokenService
	gadgets *gadget.Lifecycle
}

// testServer creates a Server backed by a temporary SQLite database.
func testServer(t *testing.T) *testEnv {
	t.Helper()
	return testServerWithAPIConfig(t, config.APIConfig{
		Host: "127.0.0.1",
		Port: 0,
		Timeouts: config.APITimeoutConfig{
			Read:  5,
			Write: 5,
			Idle:  5,
		},
	})
}

func testServerWithAPIConfig(t *testing.T, apiCfg config.APIConfig) *testEnv {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	tokens := auth.NewTokenService(testJWTSecret, time.Hour)
	authSvc, err := auth.NewService(auth.NewUserRepository(db.DB), tokens)
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	lifecycle := gadget.NewLifecycle(gadget.NewSQLiteRepository(db.DB), nil, testSelfDestructDelay)

	srv, err := New(Deps{
		Config: apiCfg,
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   logging.Discard(),
		Auth:     authSvc,
		Gadgets:  lifecycle,
		Audit:    audit.NewSQLiteRepository(db.DB),
		Database: db,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	lifecycle.SetNotifier(srv.Hub())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	// Let pending self-destruct timers finish before the database closes.
	t.Cleanup(func() {
		deadline := time.Now().Add(2 * time.Second)
		for lifecycle.PendingDestructions() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	})

	return &testEnv{srv: srv, router: srv.Handler(), db: db, tokens: tokens, gadgets: lifecycle}
}

func newRequest(method, path, body string) *http.Request {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// do performs a request against the router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := newRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return serve(e, req)
}

// login registers a user and returns a valid bearer token.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/auth/signup", `{"username":"ethan","password":"mission"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d; body: %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/auth/login", `{"username":"ethan","password":"mission"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d; body: %s", w.Code, w.Body.String())
	}

	var resp loginResponse
	decode(t, w, &resp)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Status  string            `json:"status"`
		Version string            `json:"version"`
		Checks  map[string]string `json:"checks"`
	}
	decode(t, w, &resp)

	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("version = %q, want test", resp.Version)
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("database check = %q, want ok", resp.Checks["database"])
	}
	if _, ok := resp.Checks["mqtt"]; ok {
		t.Error("mqtt check should be absent when MQTT is not configured")
	}
}

func TestHealth_ContentType(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/health", "", "")
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHealth_DatabaseDown(t *testing.T) {
	env := testServer(t)
	env.srv.database = stubChecker{err: errors.New("database is locked")}
	env.srv.mqtt = stubChecker{err: errors.New("not connected")}

	w := env.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, w, &resp)
	if resp.Status != "unavailable" {
		t.Errorf("status = %q, want unavailable", resp.Status)
	}
	if resp.Checks["mqtt"] != "not connected" {
		t.Errorf("mqtt check = %q", resp.Checks["mqtt"])
	}
}

func TestHealth_MQTTDownStillHealthy(t *testing.T) {
	env := testServer(t)
	env.srv.mqtt = stubChecker{err: errors.New("not connected")}

	w := env.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestRequestID_ReachesHandlers(t *testing.T) {
	env := testServer(t)

	var seen string
	h := env.srv.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-456")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "client-456" {
		t.Errorf("requestID() inside handler = %q, want %q", seen, "client-456")
	}
	if got := requestID(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("requestID() outside the middleware = %q, want empty", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/gadgets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := testServerWithAPIConfig(t, config.APIConfig{
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://imf.example"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty for disallowed origin", got)
	}
}

func TestRecovery(t *testing.T) {
	env := testServer(t)
	handler := env.srv.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	env := testServer(t)
	handler := env.srv.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestBodySizeLimit(t *testing.T) {
	env := testServer(t)

	body := `{"username":"` + strings.Repeat("x", maxBodyBytes) + `","password":"secret"}`
	w := env.do(t, http.MethodPost, "/auth/signup", body, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestFail_CodeFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, ErrCodeBadRequest},
		{http.StatusUnauthorized, ErrCodeUnauthorized},
		{http.StatusForbidden, ErrCodeForbidden},
		{http.StatusNotFound, ErrCodeNotFound},
		{http.StatusInternalServerError, ErrCodeInternal},
		{http.StatusServiceUnavailable, ErrCodeUnavailable},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		fail(w, tt.status, "nope")

		var got Error
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if w.Code != tt.status || got.Status != tt.status || got.Code != tt.want || got.Message != "nope" {
			t.Errorf("fail(%d) = %d %+v, want code %q", tt.status, w.Code, got, tt.want)
		}
	}

	w := httptest.NewRecorder()
	invalid(w, "bad field")
	if !strings.Contains(w.Body.String(), ErrCodeValidation) {
		t.Errorf("invalid() body = %s, want %s", w.Body.String(), ErrCodeValidation)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/nonexistent", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Bearer ", ""},
		{"Bearer", ""},
		{"", ""},
		{"  Bearer   tok  ", "tok"},
	}
	for _, tt := range tests {
		if got := bearerToken(tt.header); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without auth service should fail")
	}
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	port := 19180
	env := testServerWithAPIConfig(t, config.APIConfig{
		Host: "127.0.0.1",
		Port: port,
		Timeouts: config.APITimeoutConfig{
			Read:  5,
			Write: 5,
			Idle:  5,
		},
	})

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start error: %v", err)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestServer_CloseWithoutStart(t *testing.T) {
	env := testServer(t)
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() on unstarted server error: %v", err)
	}
}
