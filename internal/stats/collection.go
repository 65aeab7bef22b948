package stats

import (
	"fmt"
	"io"
	"sync"
	"time"

	"themis/internal/abort"
)

// sample is one recorded (timestamp, value) pair.
type sample struct {
	at    time.Time
	value uint64
}

// Collection is a time series of uint64 samples, each timestamped at
// add-time. An optional minimum-value threshold filters out samples
// below it, so high-volume low-signal stats (e.g. per-record sizes)
// don't flood the log with noise nobody reads.
//
// Add* is called concurrently by worker goroutines while Write/IsReady
// are called by the stat writer's background goroutine; mu guards the
// sample slice across both.
type Collection struct {
	name      string
	threshold uint64
	clock     clockFunc
	companion *Summary

	mu      sync.Mutex
	samples []sample
}

// NewCollection returns an empty Collection named name. Samples below
// threshold are dropped. companion, if non-nil, receives every accepted
// sample too (the automatic Summary digest every registration gets).
func NewCollection(name string, threshold uint64, companion *Summary) *Collection {
	return &Collection{name: name, threshold: threshold, clock: defaultClock, companion: companion}
}

func (c *Collection) AddUint64(v uint64) {
	if v < c.threshold {
		return
	}
	c.mu.Lock()
	c.samples = append(c.samples, sample{at: c.clock(), value: v})
	c.mu.Unlock()
	if c.companion != nil {
		c.companion.AddUint64(v)
	}
}

func (c *Collection) AddTimer(start, stop time.Time) {
	abort.Fatalf(nil, "stats: AddTimer called on Collection %q", c.name)
}

func (c *Collection) Setup(desc *LogLineDescriptor) {
	desc.AddField("collection_stat_name", KindString)
	desc.AddField("timestamp_us", KindUint64)
	desc.AddField("value", KindUint64)
	desc.Finalize()
}

func (c *Collection) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples) > 0
}

func (c *Collection) NewEmptyCopy() Container {
	cp := NewCollection(c.name, c.threshold, c.companion)
	cp.clock = c.clock
	return cp
}

func (c *Collection) Write(w io.Writer, desc *LogLineDescriptor, phase string, epoch uint64) error {
	c.mu.Lock()
	samples := c.samples
	c.samples = nil
	c.mu.Unlock()

	for _, s := range samples {
		line := desc.Line([]any{desc.TypeName(), phase, epoch, c.name, uint64(s.at.UnixMicro()), s.value})
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
