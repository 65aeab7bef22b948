package sysutil

import (
	"log/slog"
	"os"

	"themis/internal/abort"
	"themis/internal/logging"
)

// EnsureDir creates path and any missing parents if they do not
// already exist. A failure here is an environment failure, fatal like
// every other POSIX-call error in this codebase.
func EnsureDir(logger *slog.Logger, path string) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		abort.Fatalf(logging.Default(logger).With("component", "sysutil"), "sysutil: mkdir %q: %v", path, err)
	}
}

// DirSize sums the apparent size of every regular file directly inside
// dir (non-recursive), used for quick disk-usage accounting.
func DirSize(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
