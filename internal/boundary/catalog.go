package boundary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"syscall"

	"os"

	"themis/internal/abort"
	"themis/internal/sysutil"
)

var ErrEmptyCatalog = errors.New("boundary: catalog file is empty")

// Catalog is a read-only, mmap-backed view of a completed (or
// in-progress) boundary-key catalog file. Grounded on the teacher's
// MmapReader: open, stat, mmap once, and serve lookups directly against
// the mapped bytes for the life of the handle.
type Catalog struct {
	file *os.File
	data []byte

	partitionCount uint64
	validCount     uint64
}

// Open mmaps path and scans its entries to find the contiguous prefix
// of valid ones. Non-contiguity (a valid entry after an invalid one) is
// corruption and fatal.
func Open(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return nil, ErrEmptyCatalog
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(info.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	c := &Catalog{file: f, data: data}
	c.partitionCount = binary.LittleEndian.Uint64(data[:headerSize])
	c.validCount = c.scanValidPrefix()
	return c, nil
}

func (c *Catalog) scanValidPrefix() uint64 {
	var count uint64
	sawInvalid := false
	for i := uint64(0); i < c.partitionCount; i++ {
		off := entryOffset(i)
		e := decodeEntry(c.data[off : off+entrySize])
		if !e.valid {
			sawInvalid = true
			continue
		}
		if sawInvalid {
			abort.Fatalf(nil, "boundary: corrupt catalog, valid entry %d follows an invalid one", i)
		}
		count++
	}
	return count
}

// PartitionCount returns the catalog's declared total partition count
// (including not-yet-written entries).
func (c *Catalog) PartitionCount() uint64 { return c.partitionCount }

// ValidCount returns the number of boundary keys actually written.
func (c *Catalog) ValidCount() uint64 { return c.validCount }

func (c *Catalog) entryAt(i uint64) entry {
	off := entryOffset(i)
	return decodeEntry(c.data[off : off+entrySize])
}

// Key returns a copy of the boundary key for partition i. Fatal if i is
// not a valid index.
func (c *Catalog) Key(i uint64) []byte {
	if i >= c.validCount {
		abort.Fatalf(nil, "boundary: Key(%d) out of range, only %d valid entries", i, c.validCount)
	}
	e := c.entryAt(i)
	return bytes.Clone(c.data[e.offset : e.offset+uint64(e.length)])
}

// PartitionBounds returns the key for partition i paired with the key
// for partition i+1. ok is false if i+1 has no valid entry (i is the
// last partition), in which case upper should be treated as absent
// (the partition inclusion rule becomes lower <= k with no upper
// bound).
func (c *Catalog) PartitionBounds(i uint64) (lower, upper []byte, ok bool) {
	lower = c.Key(i)
	if i+1 >= c.validCount {
		return lower, nil, false
	}
	return lower, c.Key(i + 1), true
}

// PartitionBoundsRange returns the i-th key paired with the (j+1)-th
// key, i <= j. ok is false if j+1 has no valid entry.
func (c *Catalog) PartitionBoundsRange(i, j uint64) (lower, upper []byte, ok bool) {
	if i > j {
		abort.Fatalf(nil, "boundary: PartitionBoundsRange(%d, %d): i > j", i, j)
	}
	lower = c.Key(i)
	upperIdx := j + 1
	if upperIdx >= c.validCount {
		return lower, nil, false
	}
	return lower, c.Key(upperIdx), true
}

// DiscoverAndOpen expands pattern against the catalog directory layout
// (one file per job, e.g. "catalogs/**/*.catalog") and opens every
// matching file, for recovery-time enumeration of per-job catalogs
// without the caller needing to know job ids up front.
func DiscoverAndOpen(pattern string) ([]*Catalog, error) {
	paths, err := sysutil.DiscoverCatalogs(pattern)
	if err != nil {
		return nil, err
	}
	catalogs := make([]*Catalog, 0, len(paths))
	for _, p := range paths {
		c, err := Open(p)
		if err != nil {
			for _, opened := range catalogs {
				opened.Close()
			}
			return nil, err
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, nil
}

// HasPartition reports whether i is a resolvable partition index given
// what has actually been written so far.
func (c *Catalog) HasPartition(i uint64) bool { return i < c.validCount }

// Close unmaps and closes the underlying file.
func (c *Catalog) Close() error {
	var err error
	if c.data != nil {
		if unmapErr := syscall.Munmap(c.data); unmapErr != nil {
			err = unmapErr
		}
		c.data = nil
	}
	if c.file != nil {
		if closeErr := c.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		c.file = nil
	}
	return err
}
