package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anima-sh/anima/db"
	"github.com/anima-sh/anima/internal/chat"
	"github.com/anima-sh/anima/internal/config"
	"github.com/anima-sh/anima/internal/database"
	"github.com/anima-sh/anima/internal/embed"
	"github.com/anima-sh/anima/internal/memory"
	"github.com/anima-sh/anima/internal/observability"
	"github.com/anima-sh/anima/internal/persona"
	"github.com/anima-sh/anima/internal/provider"
	"github.com/anima-sh/anima/internal/session"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideTracing(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	a.Personas = persona.NewStore(pool, logger, cfg.VitalityHalfLifeHours)
	a.Sessions = session.NewStore(pool, logger)

	embedder := embed.NewOpenAI(cfg.EmbedderModel)
	a.Memories = memory.NewStore(pool, embedder, logger,
		time.Duration(cfg.WorkingTTLHours)*time.Hour)

	cascade, err := provideCascade(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Cascade = cascade

	a.Engine = chat.NewEngine(a.Personas, a.Sessions, a.Memories, cascade, chat.Config{
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		HistoryWindow: config.NormalizeMaxHistoryMessages(cfg.MaxHistoryMessages),
		MemoryTopK:    cfg.MemoryTopK,
		MemoryBudget:  cfg.MemoryBudget,
	}, logger)

	// Background decay: working-memory scores, stale rows, persona
	// vitality. Runs until Close cancels it.
	schedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.schedulerDone = make(chan struct{})

	scheduler := memory.NewScheduler(a.Memories, a.Personas,
		time.Duration(cfg.DecayIntervalMin)*time.Minute, logger)
	go func() {
		defer close(a.schedulerDone)
		scheduler.Run(schedCtx)
	}()

	return a, nil
}

// provideTracing sets up OTLP trace export. An empty endpoint disables
// tracing entirely; exporter failures downgrade to a warning inside
// observability.Setup.
func provideTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.TraceEndpoint == "" {
		return func() {}
	}
	return observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.TraceEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)
}

func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// provideCascade builds the provider chain in configured order with the
// static fallback terminating it.
func provideCascade(cfg *config.Config, logger *slog.Logger) (*provider.Cascade, error) {
	providers := make([]provider.Provider, 0, len(cfg.Cascade))
	for _, name := range cfg.Cascade {
		switch name {
		case config.ProviderAnthropic:
			providers = append(providers, provider.NewAnthropic(cfg.AnthropicModel, logger))
		case config.ProviderOpenAI:
			providers = append(providers, provider.NewOpenAI(cfg.OpenAIModel, logger))
		default:
			// Validate() rejects unknown names before Setup runs.
			return nil, fmt.Errorf("unknown provider %q in cascade", name)
		}
	}

	fallback := provider.NewStatic(cfg.FallbackReply)
	return provider.NewCascade(providers, fallback, provider.DefaultCascadeConfig(), logger), nil
}
