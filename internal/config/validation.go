package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// History limits. Requests may ask for fewer messages but never more
// than MaxAllowedHistoryMessages.
const (
	DefaultMaxHistoryMessages int32 = 20
	MinHistoryMessages        int32 = 1
	MaxAllowedHistoryMessages int32 = 200
)

// apiKeyEnvVars maps cascade provider names to the environment variable
// holding their API key. The static fallback needs no key.
var apiKeyEnvVars = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider cascade validation
	if len(c.Cascade) == 0 {
		return fmt.Errorf("%w: cascade cannot be empty", ErrInvalidProvider)
	}
	for _, name := range c.Cascade {
		envVar, ok := apiKeyEnvVars[name]
		if !ok {
			return fmt.Errorf("%w: %q is not a known provider (valid: %s, %s)",
				ErrInvalidProvider, name, ProviderAnthropic, ProviderOpenAI)
		}
		if os.Getenv(envVar) == "" {
			return fmt.Errorf("%w: %s environment variable is required for provider %q",
				ErrMissingAPIKey, envVar, name)
		}
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 200000 {
		return fmt.Errorf("%w: must be between 1 and 200,000, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// 2. Memory validation
	if c.WorkingTTLHours < 1 || c.WorkingTTLHours > 24*365 {
		return fmt.Errorf("%w: must be between 1 and %d hours, got %d",
			ErrInvalidWorkingTTL, 24*365, c.WorkingTTLHours)
	}

	if c.VitalityHalfLifeHours <= 0 || c.VitalityHalfLifeHours > 24*365 {
		return fmt.Errorf("%w: must be between 0 (exclusive) and %d hours, got %g",
			ErrInvalidVitalityHalfLife, 24*365, c.VitalityHalfLifeHours)
	}

	// 3. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Warn on the default dev password but don't block local development.
	if c.PostgresPassword == "anima_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password in config.yaml for production deployments")
	}

	// 4. PostgreSQL SSL mode validation
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

// NormalizeMaxHistoryMessages clamps a requested history window to the
// allowed range, falling back to the default when unset.
func NormalizeMaxHistoryMessages(limit int32) int32 {
	if limit <= 0 {
		return DefaultMaxHistoryMessages
	}
	if limit < MinHistoryMessages {
		return MinHistoryMessages
	}
	if limit > MaxAllowedHistoryMessages {
		return MaxAllowedHistoryMessages
	}
	return limit
}
