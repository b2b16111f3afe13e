package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anima-sh/anima/internal/chat"
	"github.com/anima-sh/anima/internal/log"
	"github.com/anima-sh/anima/internal/persona"
	"github.com/anima-sh/anima/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Engine:       &chat.Engine{},
		PersonaStore: &persona.Store{},
		SessionStore: &session.Store{},
		IsDev:        true,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestNewServer_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
	}{
		{"missing engine", ServerConfig{PersonaStore: &persona.Store{}, SessionStore: &session.Store{}}},
		{"missing persona store", ServerConfig{Engine: &chat.Engine{}, SessionStore: &session.Store{}}},
		{"missing session store", ServerConfig{Engine: &chat.Engine{}, PersonaStore: &persona.Store{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("NewServer accepted incomplete config")
			}
		})
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestServer_Ready(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	// No pool configured, so readiness reports ok without a DB check.
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_ConfigRouteDisabledWithoutConfig(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when config is not wired", rec.Code)
	}
}

func TestServer_SecurityHeadersOnAPIRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options not set on API route")
	}
}
