package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of a cascade call.
type Result struct {
	Text     string
	Provider string // name of the provider that produced the text
	Degraded bool   // true when every upstream failed and the static reply was used
}

// guarded wraps one upstream provider with its failure-isolation state.
// Breaker and limiter are per-provider: one flapping upstream must not
// affect the others.
type guarded struct {
	provider Provider
	breaker  *CircuitBreaker
	limiter  *rate.Limiter
}

// Cascade tries providers in order and falls back to a static reply
// when all of them fail.
type Cascade struct {
	providers []*guarded
	fallback  *Static
	retryCfg  RetryConfig
	logger    *slog.Logger
}

// CascadeConfig tunes the per-provider guards.
type CascadeConfig struct {
	Retry   RetryConfig
	Breaker CircuitBreakerConfig

	// RequestsPerSecond caps each provider's outbound call rate.
	// Zero disables rate limiting.
	RequestsPerSecond float64
	RateBurst         int
}

// DefaultCascadeConfig returns sensible defaults.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		Retry:             DefaultRetryConfig(),
		Breaker:           DefaultCircuitBreakerConfig(),
		RequestsPerSecond: 5,
		RateBurst:         10,
	}
}

// NewCascade creates a cascade over the given providers in order.
// fallback terminates the cascade and must not be nil.
func NewCascade(providers []Provider, fallback *Static, cfg CascadeConfig, logger *slog.Logger) *Cascade {
	guards := make([]*guarded, 0, len(providers))
	for _, p := range providers {
		var limiter *rate.Limiter
		if cfg.RequestsPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RateBurst)
		}
		guards = append(guards, &guarded{
			provider: p,
			breaker:  NewCircuitBreaker(cfg.Breaker),
			limiter:  limiter,
		})
	}
	return &Cascade{
		providers: guards,
		fallback:  fallback,
		retryCfg:  cfg.Retry,
		logger:    logger.With("component", "cascade"),
	}
}

// Complete tries each provider in order and returns the first success.
// A provider whose breaker is open is skipped without a network call.
// When every provider fails the static fallback reply is returned with
// Degraded=true and a nil error; only ctx cancellation makes Complete
// fail.
func (c *Cascade) Complete(ctx context.Context, req Request) (*Result, error) {
	for _, g := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cascade aborted: %w", err)
		}

		if err := g.breaker.Allow(); err != nil {
			c.logger.Warn("provider skipped, circuit open", "provider", g.provider.Name())
			continue
		}

		reply, err := c.callWithRetry(ctx, g, req)
		if err != nil {
			g.breaker.Failure()
			if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
				return nil, fmt.Errorf("cascade aborted: %w", err)
			}
			c.logger.Warn("provider failed, trying next",
				"provider", g.provider.Name(), "error", err)
			continue
		}

		g.breaker.Success()
		return &Result{Text: reply.Text, Provider: g.provider.Name()}, nil
	}

	reply, err := c.fallback.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("static fallback: %w", err)
	}
	c.logger.Error("all providers failed, serving static reply")
	return &Result{Text: reply.Text, Provider: c.fallback.Name(), Degraded: true}, nil
}

// States reports each provider's circuit state, for health reporting.
func (c *Cascade) States() map[string]string {
	states := make(map[string]string, len(c.providers))
	for _, g := range c.providers {
		states[g.provider.Name()] = g.breaker.State().String()
	}
	return states
}

// callWithRetry executes one provider with exponential backoff.
// Each attempt is rate limited; non-retryable errors fail immediately.
func (c *Cascade) callWithRetry(ctx context.Context, g *guarded, req Request) (*Reply, error) {
	var lastErr error
	delay := c.retryCfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryCfg.MaxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		reply, err := g.provider.Complete(ctx, req)
		if err == nil {
			c.logger.Debug("completion succeeded",
				"provider", g.provider.Name(),
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return reply, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("complete: %w", err)
		}

		if attempt == c.retryCfg.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"provider", g.provider.Name(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryCfg.MaxInterval)
		}
	}

	return nil, fmt.Errorf("complete after %d retries (elapsed: %v): %w",
		c.retryCfg.MaxRetries, time.Since(start), lastErr)
}
