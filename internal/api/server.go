// Package api exposes the JSON REST API: chat, persona and session
// management, memory inspection, configuration, and health probes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anima-sh/anima/internal/chat"
	"github.com/anima-sh/anima/internal/config"
	"github.com/anima-sh/anima/internal/memory"
	"github.com/anima-sh/anima/internal/persona"
	"github.com/anima-sh/anima/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Engine       *chat.Engine   // Required
	PersonaStore *persona.Store // Required
	SessionStore *session.Store // Required
	MemoryStore  *memory.Store  // Optional: nil disables memory inspection API
	Config       *config.Config // Optional: nil disables /api/v1/config
	Pool         *pgxpool.Pool  // Optional: nil disables DB check in /ready
	Breakers     breakerStates  // Optional: provider circuit states in /ready
	CORSOrigins  []string
	IsDev        bool // disables HSTS
	TrustProxy   bool // trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	RateBurst    int  // per-IP burst size (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("chat engine is required")
	}
	if cfg.PersonaStore == nil {
		return nil, errors.New("persona store is required")
	}
	if cfg.SessionStore == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	// Chat
	ch := &chatHandler{engine: cfg.Engine, logger: logger}
	mux.HandleFunc("POST /api/v1/chat", ch.send)

	// Persona CRUD
	ph := &personaHandler{store: cfg.PersonaStore, logger: logger}
	mux.HandleFunc("GET /api/v1/personas", ph.list)
	mux.HandleFunc("POST /api/v1/personas", ph.create)
	mux.HandleFunc("GET /api/v1/personas/{id}", ph.get)
	mux.HandleFunc("PATCH /api/v1/personas/{id}", ph.update)
	mux.HandleFunc("DELETE /api/v1/personas/{id}", ph.remove)

	// Session inspection
	sh := &sessionHandler{store: cfg.SessionStore, logger: logger}
	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.remove)

	// Memory inspection (optional)
	if cfg.MemoryStore != nil {
		mh := &memoryHandler{store: cfg.MemoryStore, logger: logger}
		mux.HandleFunc("GET /api/v1/memories", mh.list)
		mux.HandleFunc("POST /api/v1/memories", mh.create)
		mux.HandleFunc("GET /api/v1/memories/search", mh.search)
		mux.HandleFunc("DELETE /api/v1/memories/{id}", mh.remove)
	}

	// Masked runtime configuration (optional)
	if cfg.Config != nil {
		cfgH := &configHandler{cfg: cfg.Config, logger: logger}
		mux.HandleFunc("GET /api/v1/config", cfgH.get)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must be before RateLimit so preflight
	// OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, cfg.Breakers))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
