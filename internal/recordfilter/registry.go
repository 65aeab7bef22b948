package recordfilter

import (
	"sync"

	"themis/internal/boundary"
)

// PartitionRange names a [i, j] inclusive partition-index range from a
// failed job's recovery info, to be resolved against that job's
// boundary catalog.
type PartitionRange struct {
	FirstPartition uint64
	LastPartition  uint64
}

// RecoveryInfoSource looks up recovery info for a job id. ok is false
// if the job has no recovery info at all (the common case: most jobs
// never fail), in which case the registry caches "no filter".
type RecoveryInfoSource interface {
	RecoveryInfo(jobID uint64) (catalogPath string, ranges []PartitionRange, ok bool)
}

// Registry caches one Filter per job id, building each lazily on first
// lookup.
type Registry struct {
	source RecoveryInfoSource

	mu      sync.Mutex
	filters map[uint64]*Filter
}

// NewRegistry returns a Registry backed by source.
func NewRegistry(source RecoveryInfoSource) *Registry {
	return &Registry{source: source, filters: make(map[uint64]*Filter)}
}

// FilterFor returns the (possibly cached) Filter for jobID, building it
// from the job's recovery info and boundary catalog on first access.
func (r *Registry) FilterFor(jobID uint64) (*Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.filters[jobID]; ok {
		return f, nil
	}

	catalogPath, ranges, ok := r.source.RecoveryInfo(jobID)
	if !ok {
		f := NoFilter()
		r.filters[jobID] = f
		return f, nil
	}

	cat, err := boundary.Open(catalogPath)
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	f := New(resolveRanges(cat, ranges))
	r.filters[jobID] = f
	return f, nil
}

// resolveRanges converts partition-index ranges into key Ranges via the
// catalog. A range whose first partition index isn't resolvable in the
// catalog (the failed job never got that far) contributes nothing: it
// is simply dropped rather than failing the whole filter build, since
// recovery info may reference partitions beyond what completed before
// the failure.
func resolveRanges(cat *boundary.Catalog, ranges []PartitionRange) []Range {
	var out []Range
	for _, pr := range ranges {
		if !cat.HasPartition(pr.FirstPartition) {
			continue
		}
		lower, upper, hasUpper := cat.PartitionBoundsRange(pr.FirstPartition, pr.LastPartition)
		out = append(out, Range{Lower: lower, Upper: upper, HasUpper: hasUpper})
	}
	return out
}
