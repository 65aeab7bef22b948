// Package telemetry implements the periodic interval stat logger and
// the TCP JSON resource monitor: the two pieces of the substrate that
// expose live operational state to a human or a dashboard, as opposed
// to the append-only stats log.
package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"themis/internal/abort"
	"themis/internal/logging"
)

// Sampler returns the current value of one periodically-logged gauge.
type Sampler func() uint64

// IntervalLogger runs a set of named samplers on a fixed period,
// feeding every sample to sink. It is driven by gocron rather than a
// hand-rolled ticker loop, matching how the rest of the corpus schedule
// periodic work.
type IntervalLogger struct {
	logger   *slog.Logger
	sched    gocron.Scheduler
	interval time.Duration
	sink     func(name string, v uint64)

	mu       sync.Mutex
	samplers map[string]Sampler
}

// NewIntervalLogger returns an IntervalLogger that samples every
// registered Sampler once per interval and hands each (name, value)
// pair to sink.
func NewIntervalLogger(logger *slog.Logger, interval time.Duration, sink func(name string, v uint64)) *IntervalLogger {
	l := logging.Default(logger).With("component", "telemetry")
	sched, err := gocron.NewScheduler()
	if err != nil {
		abort.Fatalf(l, "telemetry: creating scheduler: %v", err)
	}
	return &IntervalLogger{
		logger:   l,
		sched:    sched,
		interval: interval,
		sink:     sink,
		samplers: make(map[string]Sampler),
	}
}

// Register adds a named sampler. Safe to call before or after Start.
func (l *IntervalLogger) Register(name string, s Sampler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samplers[name] = s
}

// Start schedules the periodic tick and begins running it.
func (l *IntervalLogger) Start() {
	_, err := l.sched.NewJob(
		gocron.DurationJob(l.interval),
		gocron.NewTask(l.tick),
	)
	if err != nil {
		abort.Fatalf(l.logger, "telemetry: scheduling interval job: %v", err)
	}
	l.sched.Start()
}

func (l *IntervalLogger) tick() {
	l.mu.Lock()
	samplers := make(map[string]Sampler, len(l.samplers))
	for name, s := range l.samplers {
		samplers[name] = s
	}
	l.mu.Unlock()

	for name, s := range samplers {
		l.sink(name, s())
	}
}

// Stop shuts down the scheduler, blocking until the in-flight tick, if
// any, completes.
func (l *IntervalLogger) Stop() {
	if err := l.sched.Shutdown(); err != nil {
		l.logger.Error("telemetry: scheduler shutdown failed", "error", err)
	}
}
