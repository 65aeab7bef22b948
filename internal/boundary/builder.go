package boundary

import (
	"encoding/binary"
	"os"

	"themis/internal/abort"
)

// Builder creates and appends to a boundary-key catalog file. Only the
// producing job ever builds one; once the job is done the file is
// read-only for the lifetime of the cluster, which is what lets Catalog
// use a plain read-only mmap rather than anything concurrency-aware.
type Builder struct {
	file           *os.File
	partitionCount uint64
	nextIndex      uint64
	nextOffset     int64
}

// Create writes a fresh catalog at path with partitionCount invalid
// entries and no keys.
func Create(path string, partitionCount uint64) (*Builder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:], partitionCount)
	if _, err := f.WriteAt(header[:], 0); err != nil {
		f.Close()
		return nil, err
	}

	invalid := encodeEntry(entry{})
	for i := uint64(0); i < partitionCount; i++ {
		if _, err := f.WriteAt(invalid[:], entryOffset(i)); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &Builder{file: f, partitionCount: partitionCount, nextOffset: metadataSize(partitionCount)}, nil
}

// AddBoundaryKey appends key at the next free offset and marks the next
// unused entry valid. Fatal if every entry is already valid.
func (b *Builder) AddBoundaryKey(key []byte) error {
	if b.nextIndex >= b.partitionCount {
		abort.Fatalf(nil, "boundary: AddBoundaryKey called with all %d entries already valid", b.partitionCount)
	}

	if _, err := b.file.WriteAt(key, b.nextOffset); err != nil {
		return err
	}
	e := encodeEntry(entry{valid: true, offset: uint64(b.nextOffset), length: uint32(len(key))})
	if _, err := b.file.WriteAt(e[:], entryOffset(b.nextIndex)); err != nil {
		return err
	}

	b.nextOffset += int64(len(key))
	b.nextIndex++
	return nil
}

// Close flushes and closes the underlying file.
func (b *Builder) Close() error {
	if err := b.file.Sync(); err != nil {
		b.file.Close()
		return err
	}
	return b.file.Close()
}
