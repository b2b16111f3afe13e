package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anima-sh/anima/internal/log"
)

func TestRateLimiter_ExhaustsBurst(t *testing.T) {
	rl := newRateLimiter(0.0001, 3)

	for i := range 3 {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Error("request allowed after burst exhausted")
	}

	// A different IP has its own bucket.
	if !rl.allow("5.6.7.8") {
		t.Error("separate IP was rejected")
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := newRateLimiter(0.0001, 1)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header not set")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xRealIP    string
		xff        string
		trustProxy bool
		want       string
	}{
		{"direct", "10.0.0.1:5000", "", "", false, "10.0.0.1"},
		{"proxy headers ignored when untrusted", "10.0.0.1:5000", "1.2.3.4", "", false, "10.0.0.1"},
		{"x-real-ip trusted", "10.0.0.1:5000", "1.2.3.4", "", true, "1.2.3.4"},
		{"xff first ip", "10.0.0.1:5000", "", "2.3.4.5, 6.7.8.9", true, "2.3.4.5"},
		{"invalid header falls back", "10.0.0.1:5000", "not-an-ip", "", true, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
