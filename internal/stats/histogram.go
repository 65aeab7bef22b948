package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"themis/internal/abort"
)

// Histogram buckets uint64 samples into fixed-width bins. Like Summary,
// it is never "ready" for an opportunistic flush: bin counts are only
// meaningful as a complete picture, written once at teardown.
type Histogram struct {
	name      string
	binSize   uint64
	companion *Summary

	mu   sync.Mutex
	bins map[uint64]uint64 // bin index -> count
}

// NewHistogram returns an empty Histogram named name with the given bin
// width. binSize must be nonzero.
func NewHistogram(name string, binSize uint64, companion *Summary) *Histogram {
	if binSize == 0 {
		abort.Fatalf(nil, "stats: histogram %q has zero bin size", name)
	}
	return &Histogram{name: name, binSize: binSize, companion: companion, bins: make(map[uint64]uint64)}
}

func (h *Histogram) AddUint64(v uint64) {
	h.mu.Lock()
	h.bins[v/h.binSize]++
	h.mu.Unlock()
	if h.companion != nil {
		h.companion.AddUint64(v)
	}
}

func (h *Histogram) AddTimer(start, stop time.Time) {
	abort.Fatalf(nil, "stats: AddTimer called on Histogram %q", h.name)
}

func (h *Histogram) Setup(desc *LogLineDescriptor) {
	desc.AddField("bin_lower", KindUint64)
	desc.AddField("count", KindUint64)
	desc.Finalize()
}

func (h *Histogram) IsReady() bool { return false }

func (h *Histogram) NewEmptyCopy() Container {
	return NewHistogram(h.name, h.binSize, h.companion)
}

func (h *Histogram) Write(w io.Writer, desc *LogLineDescriptor, phase string, epoch uint64) error {
	h.mu.Lock()
	bins := h.bins
	h.bins = make(map[uint64]uint64)
	h.mu.Unlock()

	indices := make([]uint64, 0, len(bins))
	for idx := range bins {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, idx := range indices {
		line := desc.Line([]any{desc.TypeName(), phase, epoch, idx * h.binSize, bins[idx]})
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
