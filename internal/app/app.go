// Package app provides application initialization and lifecycle.
//
// App is the container that wires configuration, the database pool,
// the stores, the provider cascade, and the chat engine, and owns
// their shutdown order.
package app

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anima-sh/anima/internal/chat"
	"github.com/anima-sh/anima/internal/config"
	"github.com/anima-sh/anima/internal/memory"
	"github.com/anima-sh/anima/internal/persona"
	"github.com/anima-sh/anima/internal/provider"
	"github.com/anima-sh/anima/internal/session"
)

// schedulerDrainTimeout bounds the wait for the decay scheduler to
// notice cancellation during shutdown.
const schedulerDrainTimeout = 5 * time.Second

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool     *pgxpool.Pool
	Personas *persona.Store
	Sessions *session.Store
	Memories *memory.Store
	Cascade  *provider.Cascade
	Engine   *chat.Engine

	otelCleanup   func()
	cancel        func()
	schedulerDone chan struct{}
}

// Close gracefully shuts down all resources in reverse setup order:
// scheduler first, then the database pool, then the trace exporter so
// shutdown spans still flush.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}
	if a.schedulerDone != nil {
		select {
		case <-a.schedulerDone:
		case <-time.After(schedulerDrainTimeout):
			a.Logger.Warn("decay scheduler did not stop in time")
		}
	}

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
