package sysutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverCatalogsFindsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "job-1", "a.catalog"), "x")
	mustWriteFile(t, filepath.Join(dir, "job-2", "b.catalog"), "y")
	mustWriteFile(t, filepath.Join(dir, "job-2", "ignore.txt"), "z")

	matches, err := DiscoverCatalogs(filepath.Join(dir, "**", "*.catalog"))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 catalog files, got %d: %v", len(matches), matches)
	}
}

func TestEnsureDirCreatesNestedPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	EnsureDir(nil, dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected %q to be a directory, err=%v", dir, err)
	}
}

func TestDirSizeSumsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "a"), "12345")
	mustWriteFile(t, filepath.Join(dir, "b"), "123")
	size, err := DirSize(dir)
	if err != nil {
		t.Fatalf("dir size: %v", err)
	}
	if size != 8 {
		t.Fatalf("expected 8 bytes, got %d", size)
	}
}

func TestListenUnixRemovesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sock")
	mustWriteFile(t, path, "stale")

	ln, err := ListenUnix(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
