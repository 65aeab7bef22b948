package stats

import (
	"io"
	"time"
)

// Container is the common interface every stat container (Collection,
// TimerCollection, Histogram, Summary) implements, so the writer can
// drain any of them without knowing its concrete type.
type Container interface {
	// AddUint64 records a scalar sample. Fatal on containers that don't
	// accept this shape (TimerCollection).
	AddUint64(v uint64)
	// AddTimer records a start/stop pair. Fatal on containers that don't
	// accept this shape (Collection, Histogram).
	AddTimer(start, stop time.Time)
	// Setup builds out the container's descriptor fields beyond the
	// three mandatory ones, then finalizes it.
	Setup(desc *LogLineDescriptor)
	// Write serializes and clears the container's buffered samples.
	Write(w io.Writer, desc *LogLineDescriptor, phase string, epoch uint64) error
	// IsReady reports whether the container has data worth an
	// opportunistic periodic flush. Histogram and Summary are always
	// false: their whole point is a single, complete picture written
	// once at teardown.
	IsReady() bool
	// NewEmptyCopy returns a fresh container with the same
	// configuration (threshold, bin size) and no data. The writer's
	// drain loop does not use it; Write clears containers in place.
	NewEmptyCopy() Container
}

// clockFunc is overridden in tests; defaults to time.Now.
type clockFunc func() time.Time

func defaultClock() time.Time { return time.Now() }
