package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task runs Run once on Start and then on every Interval tick until Stop.
// Runs never overlap: run n finishes before run n+1 begins.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// Prepare, when set, runs once per activation before the first Run.
	Prepare func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the loop. It returns false if the task is already running.
func (t *Task) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.loop(ctx, t.done)
	return true
}

// Stop cancels the loop and blocks until it has exited. Stopping a task that
// is not running is a no-op.
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	slog.Info("starting poller", "task", t.Name, "interval", t.Interval)

	if t.Prepare != nil {
		t.Prepare(ctx)
	}
	if ctx.Err() != nil {
		slog.Info("poller shutting down", "task", t.Name)
		return
	}

	// Initial poll
	t.poll(ctx)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller shutting down", "task", t.Name)
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

func (t *Task) poll(ctx context.Context) {
	if err := t.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("poll failed", "task", t.Name, "error", err)
	}
}
