package recordfilter

import (
	"path/filepath"
	"testing"

	"themis/internal/boundary"
)

func TestRangeContainsHalfOpen(t *testing.T) {
	r := Range{Lower: []byte{0x02}, Upper: []byte{0x05}, HasUpper: true}
	if r.Contains([]byte{0x01}) {
		t.Fatal("below lower should not pass")
	}
	if !r.Contains([]byte{0x02}) {
		t.Fatal("lower bound itself should pass")
	}
	if !r.Contains([]byte{0x04}) {
		t.Fatal("inside the range should pass")
	}
	if r.Contains([]byte{0x05}) {
		t.Fatal("upper bound is exclusive")
	}
}

func TestRangeUnboundedAbove(t *testing.T) {
	r := Range{Lower: []byte{0x05}, HasUpper: false}
	if r.Contains([]byte{0x04}) {
		t.Fatal("below lower should not pass")
	}
	if !r.Contains([]byte{0xFF}) {
		t.Fatal("anything at or above lower should pass with no upper bound")
	}
}

func TestNoFilterPassesEverything(t *testing.T) {
	f := NoFilter()
	if !f.Pass([]byte{0x00}) || !f.Pass([]byte{0xFF}) {
		t.Fatal("NoFilter must pass every key")
	}
}

func TestFilterIsDisjunctionOfRanges(t *testing.T) {
	f := New([]Range{
		{Lower: []byte{0x01}, Upper: []byte{0x03}, HasUpper: true},
		{Lower: []byte{0x07}, Upper: []byte{0x09}, HasUpper: true},
	})
	if !f.Pass([]byte{0x02}) {
		t.Fatal("0x02 should pass via the first range")
	}
	if f.Pass([]byte{0x05}) {
		t.Fatal("0x05 falls in the gap between ranges and should fail")
	}
	if !f.Pass([]byte{0x08}) {
		t.Fatal("0x08 should pass via the second range")
	}
}

// TestRegistryResolvesFromCatalog reproduces spec.md scenario 3's
// record-filter half: a catalog with 5 keys, a recovery-info range
// covering partitions [1,3], resolved to (key[1], key[4]).
func TestRegistryResolvesFromCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job-42.catalog")
	b, _ := boundary.Create(path, 5)
	keys := [][]byte{{0x01}, {0x02, 0x02}, {0x03, 0x03, 0x03}, {0x04, 0x04, 0x04, 0x04}, {0x05, 0x05, 0x05, 0x05, 0x05}}
	for _, k := range keys {
		b.AddBoundaryKey(k)
	}
	b.Close()

	src := fakeSource{catalogPath: path, ranges: []PartitionRange{{FirstPartition: 1, LastPartition: 3}}}
	reg := NewRegistry(src)

	f, err := reg.FilterFor(42)
	if err != nil {
		t.Fatalf("filter for: %v", err)
	}
	if !f.Pass([]byte{0x03}) {
		t.Fatal("0x03 should fall within [key[1], key[4])")
	}
	if f.Pass([]byte{0xFF}) {
		t.Fatal("0xFF is well above the only range and should fail")
	}

	// Second lookup must hit the cache, not rebuild.
	f2, _ := reg.FilterFor(42)
	if f != f2 {
		t.Fatal("expected the cached filter instance on second lookup")
	}
}

func TestRegistryCachesNoFilterWhenJobHasNoRecoveryInfo(t *testing.T) {
	reg := NewRegistry(fakeSource{ok: false})
	f, err := reg.FilterFor(7)
	if err != nil {
		t.Fatalf("filter for: %v", err)
	}
	if !f.Pass([]byte{0x00}) {
		t.Fatal("a job with no recovery info should get a pass-everything filter")
	}

	f2, _ := reg.FilterFor(7)
	if f != f2 {
		t.Fatal("expected the cached no-filter instance on second lookup")
	}
}

type fakeSource struct {
	catalogPath string
	ranges      []PartitionRange
	ok          bool
}

func (s fakeSource) RecoveryInfo(jobID uint64) (string, []PartitionRange, bool) {
	if s.catalogPath == "" && !s.ok {
		return "", nil, false
	}
	return s.catalogPath, s.ranges, true
}
