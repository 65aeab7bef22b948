//go:build !linux

package tsfile

import "os"

// adviseDontNeed is a no-op on platforms without posix_fadvise.
func adviseDontNeed(f *os.File) error {
	return nil
}
