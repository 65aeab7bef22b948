package boundary

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// TestPartitionBoundsRangeScenario reproduces spec.md scenario 3's
// catalog half: 5 keys, partition_bounds(1,3) == (key[1], key[4]).
func TestPartitionBoundsRangeScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job-42.catalog")
	b, err := Create(path, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	keys := [][]byte{
		{0x01},
		bytes.Repeat([]byte{0x02}, 2),
		bytes.Repeat([]byte{0x03}, 3),
		bytes.Repeat([]byte{0x04}, 4),
		bytes.Repeat([]byte{0x05}, 5),
	}
	for _, k := range keys {
		if err := b.AddBoundaryKey(k); err != nil {
			t.Fatalf("add boundary key: %v", err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cat, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cat.Close()

	if cat.ValidCount() != 5 {
		t.Fatalf("expected 5 valid entries, got %d", cat.ValidCount())
	}

	lower, upper, ok := cat.PartitionBoundsRange(1, 3)
	if !ok {
		t.Fatal("expected an upper bound for partition_bounds(1,3)")
	}
	if !bytes.Equal(lower, keys[1]) {
		t.Fatalf("lower: got %x, want %x", lower, keys[1])
	}
	if !bytes.Equal(upper, keys[4]) {
		t.Fatalf("upper: got %x, want %x", upper, keys[4])
	}
}

func TestPartitionBoundsLastHasNoUpper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.catalog")
	b, _ := Create(path, 2)
	b.AddBoundaryKey([]byte{0x01})
	b.AddBoundaryKey([]byte{0x02})
	b.Close()

	cat, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cat.Close()

	_, _, ok := cat.PartitionBounds(1)
	if ok {
		t.Fatal("expected no upper bound for the last partition")
	}
}

func TestCreatePartitionCountMatchesWrittenEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.catalog")
	b, _ := Create(path, 3)
	b.AddBoundaryKey([]byte{0xAA})
	b.Close()

	cat, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cat.Close()

	if cat.PartitionCount() != 3 {
		t.Fatalf("partition count: got %d, want 3", cat.PartitionCount())
	}
	if cat.ValidCount() != 1 {
		t.Fatalf("valid count: got %d, want 1", cat.ValidCount())
	}
}

func TestDiscoverAndOpenFindsAllJobCatalogsUnderADirectory(t *testing.T) {
	root := t.TempDir()
	for _, job := range []string{"job-1", "job-2"} {
		path := filepath.Join(root, job, "boundaries.catalog")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		b, err := Create(path, 1)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := b.AddBoundaryKey([]byte{0x01}); err != nil {
			t.Fatalf("add boundary key: %v", err)
		}
		if err := b.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	catalogs, err := DiscoverAndOpen(filepath.Join(root, "**", "*.catalog"))
	if err != nil {
		t.Fatalf("discover and open: %v", err)
	}
	defer func() {
		for _, c := range catalogs {
			c.Close()
		}
	}()
	if len(catalogs) != 2 {
		t.Fatalf("expected 2 catalogs, got %d", len(catalogs))
	}
}
