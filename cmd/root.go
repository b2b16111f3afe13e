// Package cmd provides the CLI commands.
//
// Commands:
//   - serve: HTTP API server (chat, personas, sessions, memories)
//   - migrate: apply pending database migrations and exit
//   - version: build and configuration information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/anima-sh/anima/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "anima",
	Short: "Anima - persona chat orchestration service",
	Long: `Anima serves persona-driven LLM chat over a JSON REST API.

Personas are named system-prompt profiles with a decaying vitality
score. Replies come from a provider cascade (Anthropic, then OpenAI,
then a static fallback) and every conversation feeds a two-tier
memory: durable canonical facts and decaying working memory.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("ANIMA_LOG_JSON") != "",
	})
	slog.SetDefault(logger)

	return rootCmd.Execute()
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
