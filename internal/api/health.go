package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// breakerStates reports per-provider circuit state for /ready.
type breakerStates interface {
	States() map[string]string
}

// health is a liveness probe. Returns 200 with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether the server can do useful work: the database
// must answer a ping. Provider circuit states are informational since
// a degraded cascade still serves the static reply.
func readiness(pool *pgxpool.Pool, breakers breakerStates) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}

		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "unavailable",
					"reason": "database unreachable",
				})
				return
			}
			stats := pool.Stat()
			body["db"] = map[string]any{
				"total_conns": stats.TotalConns(),
				"idle_conns":  stats.IdleConns(),
			}
		}

		if breakers != nil {
			body["providers"] = breakers.States()
		}

		writeJSON(w, http.StatusOK, body)
	})
}
