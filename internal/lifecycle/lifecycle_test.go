package lifecycle

import (
	"context"
	"testing"
	"time"
)

func TestRunCancelsOnParentDone(t *testing.T) {
	t.Parallel()
	m := New(50*time.Millisecond, nil)
	parent, parentCancel := context.WithCancel(context.Background())
	ctx, shutdown := m.Run(parent)
	defer shutdown()

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Run's context to be cancelled when parent is cancelled")
	}
}

func TestTrackRemovesOnDone(t *testing.T) {
	t.Parallel()
	m := New(time.Second, nil)
	_, cancel := context.WithCancel(context.Background())
	done := m.Track("worker", cancel)

	m.mu.Lock()
	_, tracked := m.tasks["worker"]
	m.mu.Unlock()
	if !tracked {
		t.Fatal("expected task to be tracked")
	}

	done()

	m.mu.Lock()
	_, stillTracked := m.tasks["worker"]
	m.mu.Unlock()
	if stillTracked {
		t.Fatal("expected task to be removed from registry after done()")
	}
}

func TestOnExitRunsOnShutdown(t *testing.T) {
	t.Parallel()
	m := New(time.Second, nil)
	ran := make(chan struct{}, 1)
	m.OnExit(func() { ran <- struct{}{} })

	parent, parentCancel := context.WithCancel(context.Background())
	_, shutdown := m.Run(parent)
	parentCancel()
	shutdown()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("expected OnExit callback to run on shutdown")
	}
}
