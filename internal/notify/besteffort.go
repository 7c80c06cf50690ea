// Package notify runs side effects whose failure must never reach the caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bestEffortTasks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_best_effort_tasks_total",
		Help: "Best-effort background tasks by name and outcome",
	},
	[]string{"task", "outcome"},
)

// ErrClosed is returned by Go once the notifier has been closed.
var ErrClosed = errors.New("notify: best-effort runner closed")

// Task is a detached side effect.
type Task func(ctx context.Context) error

// BestEffort runs tasks detached from the caller with a per-task timeout. Failures
// (errors, timeouts, panics) are logged and dropped; tasks are never retried.
type BestEffort struct {
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewBestEffort creates a runner whose tasks get timeout each.
func NewBestEffort(timeout time.Duration, logger *slog.Logger) *BestEffort {
	return &BestEffort{timeout: timeout, logger: logger}
}

// Go starts task in the background. The task's context keeps ctx's values (trace and
// correlation ids) but not its cancellation, so it outlives the request that spawned it.
func (b *BestEffort) Go(ctx context.Context, name string, task Task) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()

	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	go func() {
		defer b.wg.Done()
		defer cancel()
		b.run(taskCtx, name, task)
	}()
	return nil
}

func (b *BestEffort) run(ctx context.Context, name string, task Task) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return task(ctx)
	}()

	if err == nil {
		bestEffortTasks.WithLabelValues(name, "ok").Inc()
		return
	}

	outcome := "error"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		outcome = "timeout"
	}
	bestEffortTasks.WithLabelValues(name, outcome).Inc()
	b.logger.WarnContext(ctx, "best-effort task failed",
		slog.String("task", name),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", time.Since(start)),
		slog.String("error", err.Error()),
	)
}

// Close rejects new tasks and waits for running ones until ctx is done.
func (b *BestEffort) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.Wait(ctx)
}

// Wait blocks until every started task has finished or ctx is done.
func (b *BestEffort) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
