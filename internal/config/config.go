// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.anima/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Providers: chat provider cascade order, model names, fallback reply
//   - Storage: PostgreSQL connection (see storage.go)
//   - Memory: working-memory TTL, decay interval, retrieval budget
//   - Personas: vitality decay half-life
//   - Server: listen address, CORS, rate limiting, proxy trust
//   - Tracing: OTLP agent endpoint
//
// Sensitive values (passwords, API keys) are masked in MarshalJSON and
// String so accidental logging never leaks them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates an unknown provider name in the cascade.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidWorkingTTL indicates the working-memory TTL is out of range.
	ErrInvalidWorkingTTL = errors.New("invalid working memory TTL")

	// ErrInvalidVitalityHalfLife indicates the vitality half-life is out of range.
	ErrInvalidVitalityHalfLife = errors.New("invalid vitality half-life")
)

// Provider identifiers used in Config.Cascade.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// DefaultFallbackReply is returned when every provider in the cascade
// has failed. Kept deliberately generic; persona flavor belongs in the
// persona's own system prompt, not here.
const DefaultFallbackReply = "I'm having trouble reaching my language providers right now. Please try again in a moment."

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Provider cascade configuration
	Cascade        []string `mapstructure:"cascade" json:"cascade"`                 // ordered provider names
	AnthropicModel string   `mapstructure:"anthropic_model" json:"anthropic_model"` // e.g. "claude-sonnet-4-5"
	OpenAIModel    string   `mapstructure:"openai_model" json:"openai_model"`       // e.g. "gpt-4o-mini"
	Temperature    float32  `mapstructure:"temperature" json:"temperature"`
	MaxTokens      int      `mapstructure:"max_tokens" json:"max_tokens"`
	FallbackReply  string   `mapstructure:"fallback_reply" json:"fallback_reply"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Conversation history configuration
	MaxHistoryMessages int32 `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Memory configuration
	WorkingTTLHours  int `mapstructure:"working_ttl_hours" json:"working_ttl_hours"`   // working-memory row lifetime
	DecayIntervalMin int `mapstructure:"decay_interval_min" json:"decay_interval_min"` // scheduler tick, minutes
	MemoryTopK       int `mapstructure:"memory_top_k" json:"memory_top_k"`
	MemoryBudget     int `mapstructure:"memory_budget" json:"memory_budget"` // prompt budget, tokens

	// Persona configuration
	VitalityHalfLifeHours float64 `mapstructure:"vitality_half_life_hours" json:"vitality_half_life_hours"` // hours for vitality to halve without interaction

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Tracing configuration
	TraceEndpoint string `mapstructure:"trace_endpoint" json:"trace_endpoint"` // OTLP HTTP agent, empty disables tracing
	ServiceName   string `mapstructure:"service_name" json:"service_name"`
	Environment   string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".anima")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("cascade", []string{ProviderAnthropic, ProviderOpenAI})
	v.SetDefault("anthropic_model", "claude-sonnet-4-5")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("fallback_reply", DefaultFallbackReply)

	// Embedding defaults
	v.SetDefault("embedder_model", "text-embedding-3-small")

	// History defaults
	v.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	// Memory defaults
	v.SetDefault("working_ttl_hours", 48)
	v.SetDefault("decay_interval_min", 15)
	v.SetDefault("memory_top_k", 5)
	v.SetDefault("memory_budget", 800)

	// Persona defaults (one week half-life)
	v.SetDefault("vitality_half_life_hours", 168)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "anima")
	v.SetDefault("postgres_password", "anima_dev_password")
	v.SetDefault("postgres_db_name", "anima")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	// Tracing defaults (empty endpoint disables export)
	v.SetDefault("trace_endpoint", "")
	v.SetDefault("service_name", "anima")
	v.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// API keys (ANTHROPIC_API_KEY, OPENAI_API_KEY) are read directly by the
// provider SDKs, not via viper; Validate() checks their presence based
// on the configured cascade.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys can't fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("cors_origins", "ANIMA_CORS_ORIGINS")
	mustBind("trust_proxy", "ANIMA_TRUST_PROXY")
	mustBind("rate_burst", "ANIMA_RATE_BURST")
	mustBind("anthropic_model", "ANIMA_ANTHROPIC_MODEL")
	mustBind("openai_model", "ANIMA_OPENAI_MODEL")
	mustBind("fallback_reply", "ANIMA_FALLBACK_REPLY")
	mustBind("working_ttl_hours", "ANIMA_WORKING_TTL_HOURS")
	mustBind("vitality_half_life_hours", "ANIMA_VITALITY_HALF_LIFE_HOURS")
	mustBind("trace_endpoint", "ANIMA_TRACE_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real
// secret characters.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked to prevent substring
// matching; longer secrets show the first and last 2 characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// IsDev reports whether the service runs in a development environment.
// Production hardening such as HSTS only applies when this is false.
func (c *Config) IsDev() bool {
	return c.Environment == "dev" || c.Environment == "development"
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
