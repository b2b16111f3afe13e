package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/anima-sh/anima/internal/log"
)

func TestScheduler_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Interval far beyond the test lifetime: only the cancellation path
	// runs, so no database is needed.
	store := &Store{logger: log.NewNop()}
	sched := NewScheduler(store, nil, time.Hour, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	sched := NewScheduler(&Store{logger: log.NewNop()}, nil, 0, log.NewNop())
	if sched.interval != 15*time.Minute {
		t.Errorf("interval = %v, want 15m default", sched.interval)
	}
}
