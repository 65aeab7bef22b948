package stats

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Summary keeps running min/max/sum/count/mean/variance over every
// sample it sees, via Welford's streaming algorithm (population
// variance = M2 / count). A Summary is registered as the automatic
// companion of every other container kind: whatever value is added to
// the primary container is folded into its companion Summary too, so
// every stat has an always-available numeric digest regardless of how
// the raw samples are stored.
//
// Summary is never "ready" for an opportunistic periodic flush: the
// whole point of a running digest is a single, complete picture written
// once at teardown.
type Summary struct {
	name string

	mu    sync.Mutex
	count uint64
	min   uint64
	max   uint64
	sum   uint64
	mean  float64
	m2    float64
}

// NewSummary returns an empty Summary named name.
func NewSummary(name string) *Summary { return &Summary{name: name} }

func (s *Summary) AddUint64(v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.count++
	delta := float64(v) - s.mean
	s.mean += delta / float64(s.count)
	delta2 := float64(v) - s.mean
	s.m2 += delta * delta2
}

func (s *Summary) AddTimer(start, stop time.Time) {
	s.AddUint64(uint64(stop.Sub(start).Microseconds()))
}

func (s *Summary) Setup(desc *LogLineDescriptor) {
	desc.AddField("summary_stat_name", KindString)
	desc.AddField("value", KindUint64)
	desc.Finalize()
}

func (s *Summary) IsReady() bool { return false }

func (s *Summary) NewEmptyCopy() Container { return NewSummary(s.name) }

// Write emits one line per named summary statistic: min, max, sum,
// count, mean, variance. Matches spec scenario 4's six SUMM lines.
func (s *Summary) Write(w io.Writer, desc *LogLineDescriptor, phase string, epoch uint64) error {
	s.mu.Lock()
	count, min, max, sum, mean, m2 := s.count, s.min, s.max, s.sum, s.mean, s.m2
	s.mu.Unlock()

	if count == 0 {
		return nil
	}
	variance := m2 / float64(count)
	rows := []struct {
		name  string
		value any
	}{
		{"min", min},
		{"max", max},
		{"sum", sum},
		{"count", count},
		{"mean", uint64(mean)},
		{"variance", uint64(variance)},
	}
	for _, row := range rows {
		line := desc.Line([]any{desc.TypeName(), phase, epoch, row.name, row.value})
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
