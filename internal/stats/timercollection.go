package stats

import (
	"fmt"
	"io"
	"sync"
	"time"

	"themis/internal/abort"
)

type timerSample struct {
	start, stop time.Time
}

// TimerCollection is a time series of (start, stop) pairs whose elapsed
// duration is threshold-filtered, the timer analogue of Collection.
type TimerCollection struct {
	name      string
	threshold time.Duration
	companion *Summary

	mu      sync.Mutex
	samples []timerSample
}

// NewTimerCollection returns an empty TimerCollection named name.
// Elapsed durations below threshold are dropped.
func NewTimerCollection(name string, threshold time.Duration, companion *Summary) *TimerCollection {
	return &TimerCollection{name: name, threshold: threshold, companion: companion}
}

func (t *TimerCollection) AddUint64(v uint64) {
	abort.Fatalf(nil, "stats: AddUint64 called on TimerCollection %q", t.name)
}

func (t *TimerCollection) AddTimer(start, stop time.Time) {
	elapsed := stop.Sub(start)
	if elapsed < t.threshold {
		return
	}
	t.mu.Lock()
	t.samples = append(t.samples, timerSample{start: start, stop: stop})
	t.mu.Unlock()
	if t.companion != nil {
		t.companion.AddTimer(start, stop)
	}
}

func (t *TimerCollection) Setup(desc *LogLineDescriptor) {
	desc.AddField("timer_stat_name", KindString)
	desc.AddField("start_us", KindUint64)
	desc.AddField("stop_us", KindUint64)
	desc.AddField("elapsed_us", KindDuration)
	desc.Finalize()
}

func (t *TimerCollection) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples) > 0
}

func (t *TimerCollection) NewEmptyCopy() Container {
	return NewTimerCollection(t.name, t.threshold, t.companion)
}

func (t *TimerCollection) Write(w io.Writer, desc *LogLineDescriptor, phase string, epoch uint64) error {
	t.mu.Lock()
	samples := t.samples
	t.samples = nil
	t.mu.Unlock()

	for _, s := range samples {
		elapsed := uint64(s.stop.Sub(s.start).Microseconds())
		line := desc.Line([]any{desc.TypeName(), phase, epoch, t.name, uint64(s.start.UnixMicro()), uint64(s.stop.UnixMicro()), elapsed})
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
