package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anima-sh/anima/internal/log"
)

// scriptedProvider fails a fixed number of times, then succeeds.
type scriptedProvider struct {
	name     string
	failures int
	err      error
	calls    atomic.Int64
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, _ Request) (*Reply, error) {
	n := p.calls.Add(1)
	if int(n) <= p.failures {
		return nil, p.err
	}
	return &Reply{Text: p.name + " reply"}, nil
}

func testCascadeConfig() CascadeConfig {
	return CascadeConfig{
		Retry:   RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		Breaker: CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
	}
}

func TestCascade_FirstProviderWins(t *testing.T) {
	first := &scriptedProvider{name: "first"}
	second := &scriptedProvider{name: "second"}
	c := NewCascade([]Provider{first, second}, NewStatic("fallback"), testCascadeConfig(), log.NewNop())

	res, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Provider != "first" || res.Degraded {
		t.Errorf("result = %+v, want first provider, not degraded", res)
	}
	if second.calls.Load() != 0 {
		t.Errorf("second provider called %d times, want 0", second.calls.Load())
	}
}

func TestCascade_FallsThroughToSecond(t *testing.T) {
	// Non-retryable failure moves to the next provider immediately.
	first := &scriptedProvider{name: "first", failures: 10, err: errors.New("401 unauthorized")}
	second := &scriptedProvider{name: "second"}
	c := NewCascade([]Provider{first, second}, NewStatic("fallback"), testCascadeConfig(), log.NewNop())

	res, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Provider != "second" {
		t.Errorf("provider = %q, want second", res.Provider)
	}
	if first.calls.Load() != 1 {
		t.Errorf("non-retryable error retried: %d calls", first.calls.Load())
	}
}

func TestCascade_RetriesTransientError(t *testing.T) {
	p := &scriptedProvider{name: "flaky", failures: 1, err: errors.New("503 unavailable")}
	c := NewCascade([]Provider{p}, NewStatic("fallback"), testCascadeConfig(), log.NewNop())

	res, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Provider != "flaky" {
		t.Errorf("provider = %q, want flaky", res.Provider)
	}
	if p.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one failure, one retry)", p.calls.Load())
	}
}

func TestCascade_AllFailReturnsStaticDegraded(t *testing.T) {
	p1 := &scriptedProvider{name: "a", failures: 10, err: errors.New("500")}
	p2 := &scriptedProvider{name: "b", failures: 10, err: errors.New("500")}
	c := NewCascade([]Provider{p1, p2}, NewStatic("the fallback text"), testCascadeConfig(), log.NewNop())

	res, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !res.Degraded {
		t.Error("Degraded = false, want true")
	}
	if res.Provider != "static" || res.Text != "the fallback text" {
		t.Errorf("result = %+v, want static fallback", res)
	}
}

func TestCascade_OpenBreakerSkipsWithoutCall(t *testing.T) {
	p1 := &scriptedProvider{name: "down", failures: 100, err: errors.New("500")}
	p2 := &scriptedProvider{name: "up"}
	cfg := testCascadeConfig()
	cfg.Breaker = CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour}
	c := NewCascade([]Provider{p1, p2}, NewStatic("fallback"), cfg, log.NewNop())

	// First request trips the breaker on p1.
	if _, err := c.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	callsAfterFirst := p1.calls.Load()

	// Second request must skip p1 entirely.
	res, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Provider != "up" {
		t.Errorf("provider = %q, want up", res.Provider)
	}
	if p1.calls.Load() != callsAfterFirst {
		t.Errorf("open breaker did not prevent calls: %d -> %d", callsAfterFirst, p1.calls.Load())
	}

	states := c.States()
	if states["down"] != "open" {
		t.Errorf("breaker state for down = %q, want open", states["down"])
	}
}

func TestCascade_ContextCancelAborts(t *testing.T) {
	p := &scriptedProvider{name: "slow", failures: 100, err: errors.New("timeout")}
	cfg := testCascadeConfig()
	cfg.Retry = RetryConfig{MaxRetries: 50, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}
	c := NewCascade([]Provider{p}, NewStatic("fallback"), cfg, log.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Complete(ctx, Request{}); err == nil {
		t.Fatal("expected error after context cancellation")
	}
}
