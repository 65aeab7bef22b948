package stats

import "time"

// Logger is a named source of stats (typically one per worker thread or
// pipeline stage) that registers containers against a shared Writer.
// Every registration beyond RegisterSummary also creates and wires a
// companion Summary that receives the same samples, so every stat has
// an always-on numeric digest without the caller asking for one
// explicitly.
type Logger struct {
	name   string
	writer *Writer
}

// NewLogger returns a Logger named name, registering stats with writer.
func NewLogger(name string, writer *Writer) *Logger {
	return &Logger{name: name, writer: writer}
}

// RegisterCollection registers a new Collection named name with the
// given minimum-value threshold, plus its companion Summary.
func (l *Logger) RegisterCollection(name string, threshold uint64) *Collection {
	companion := l.registerSummary(name + ".summary")
	c := NewCollection(name, threshold, companion)
	desc := NewLogLineDescriptor("COLL")
	c.Setup(desc)
	l.writer.Register(c, desc)
	return c
}

// RegisterTimerCollection registers a new TimerCollection named name
// with the given minimum-elapsed threshold, plus its companion Summary.
func (l *Logger) RegisterTimerCollection(name string, threshold time.Duration) *TimerCollection {
	companion := l.registerSummary(name + ".summary")
	t := NewTimerCollection(name, threshold, companion)
	desc := NewLogLineDescriptor("TIMR")
	t.Setup(desc)
	l.writer.Register(t, desc)
	return t
}

// RegisterHistogram registers a new Histogram named name with the given
// bin width, plus its companion Summary.
func (l *Logger) RegisterHistogram(name string, binSize uint64) *Histogram {
	companion := l.registerSummary(name + ".summary")
	h := NewHistogram(name, binSize, companion)
	desc := NewLogLineDescriptor("HIST")
	h.Setup(desc)
	l.writer.Register(h, desc)
	return h
}

// RegisterSummary registers a standalone Summary named name, with no
// further companion of its own.
func (l *Logger) RegisterSummary(name string) *Summary {
	return l.registerSummary(name)
}

func (l *Logger) registerSummary(name string) *Summary {
	s := NewSummary(name)
	desc := NewLogLineDescriptor("SUMM")
	s.Setup(desc)
	l.writer.Register(s, desc)
	return s
}

// LogDatumUint64 queues a one-off uint64 value under name.
func (l *Logger) LogDatumUint64(name string, v uint64) {
	l.writer.EnqueueDatum(LogDatum{Name: name, Kind: KindUint64, Value: v})
}

// LogDatumString queues a one-off string value under name.
func (l *Logger) LogDatumString(name string, v string) {
	l.writer.EnqueueDatum(LogDatum{Name: name, Kind: KindString, Value: v})
}
