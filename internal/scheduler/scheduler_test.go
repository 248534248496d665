package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

type countingRunner struct {
	mu     sync.Mutex
	runs   int
	status harvest.RunStatus
}

func (r *countingRunner) RunOnce(context.Context) harvest.CrawlRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	return harvest.CrawlRun{Status: r.status}
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func TestStartTriggersImmediately(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{status: harvest.RunSucceeded}
	s := New(runner, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
	// No further runs after stop; the hour tick never fired.
	require.Equal(t, 1, runner.count())
}

func TestNewEnforcesMinimumInterval(t *testing.T) {
	t.Parallel()

	s := New(&countingRunner{}, time.Second, zap.NewNop())
	require.Equal(t, time.Minute, s.interval)

	s = New(&countingRunner{}, 5*time.Minute, zap.NewNop())
	require.Equal(t, 5*time.Minute, s.interval)
}
