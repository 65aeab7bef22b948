//go:build !linux

package tsfile

import "os"

// preallocate falls back to a plain truncate-extend on platforms
// without fallocate; it reserves the logical size but not necessarily
// contiguous physical blocks.
func preallocate(f *os.File, size int64) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() >= size {
		return nil
	}
	return f.Truncate(size)
}
