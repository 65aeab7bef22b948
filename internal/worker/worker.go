// Package worker wraps a named goroutine with an explicit start/stop
// lifecycle, the generalization of the original's Thread base class:
// every pipeline stage (mapper, reducer, sorter, ...) runs as one of
// these rather than a bare `go func()`.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"themis/internal/abort"
	"themis/internal/logging"
)

// Worker runs fn once on its own goroutine between Start and Stop.
// fn receives a context cancelled when Stop is called, so long-running
// loops can poll ctx.Err() to exit cooperatively.
type Worker struct {
	name   string
	logger *slog.Logger
	fn     func(ctx context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New returns a Worker named name that will run fn when started.
func New(logger *slog.Logger, name string, fn func(ctx context.Context)) *Worker {
	return &Worker{name: name, logger: logging.Default(logger).With("component", "worker"), fn: fn}
}

// Name returns the worker's name, used in logging and panic recovery.
func (w *Worker) Name() string { return w.name }

// Start launches fn on a new goroutine. Starting an already-started
// Worker is fatal.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		abort.Fatalf(w.logger, "worker %q started twice", w.name)
	}
	w.started = true
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("worker panicked", "worker", w.name, "panic", fmt.Sprint(r))
				panic(r)
			}
		}()
		w.fn(runCtx)
	}()
}

// Stop cancels the worker's context and blocks until its goroutine has
// returned. Stopping a Worker that was never started is fatal.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		abort.Fatalf(w.logger, "worker %q stopped without having been started", w.name)
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// Group runs a fixed set of named Workers as a unit: Start launches all
// of them, Stop tears all of them down in reverse start order.
type Group struct {
	workers []*Worker
}

// NewGroup returns an empty Group.
func NewGroup() *Group { return &Group{} }

// Add registers w with the group. Must be called before Start.
func (g *Group) Add(w *Worker) { g.workers = append(g.workers, w) }

// Start starts every worker in the group in registration order.
func (g *Group) Start(ctx context.Context) {
	for _, w := range g.workers {
		w.Start(ctx)
	}
}

// Stop stops every worker in the group in reverse registration order.
func (g *Group) Stop() {
	for i := len(g.workers) - 1; i >= 0; i-- {
		g.workers[i].Stop()
	}
}
