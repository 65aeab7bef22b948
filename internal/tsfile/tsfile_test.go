package tsfile

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDirectWriteSplitsAlignedPrefix reproduces spec.md scenario 5: a
// 1500-byte write at alignment 512 issues a 1024-byte direct write
// then a 476-byte non-direct tail write, and AlignedBytesWritten ends
// at 1024.
func TestDirectWriteSplitsAlignedPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(nil, path, ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	f.EnableDirectIO(512)

	buf := make([]byte, 1500)
	for i := range buf {
		buf[i] = byte(i)
	}
	n, err := f.Write(buf, 0)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 1500 {
		t.Fatalf("expected 1500 bytes written, got %d", n)
	}
	if got := f.AlignedBytesWritten(); got != 1024 {
		t.Fatalf("expected AlignedBytesWritten == 1024, got %d", got)
	}
	f.mu.Lock()
	directIO := f.directIO
	f.mu.Unlock()
	if directIO {
		t.Fatal("direct I/O should have been transparently disabled for the tail")
	}
}

// TestPreallocateThenCloseWithoutWriteTruncatesToZero is the §8
// quantified invariant: preallocating reserves space but does not
// move the high-water mark, so a close without any write truncates
// the file back to empty.
func TestPreallocateThenCloseWithoutWriteTruncatesToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(nil, path, ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Preallocate(1 << 20)

	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected size 0 after close-without-write, got %d", info.Size())
	}
}

func TestWriteAdvancesHighWaterToTruncationPoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(nil, path, ModeWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.Preallocate(1 << 20)
	if _, err := f.Write([]byte("hello"), 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 5 {
		t.Fatalf("expected size 5, got %d", info.Size())
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(nil, path, ModeReadWrite)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	want := []byte("round trip payload")
	if _, err := f.Write(want, 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, len(want))
	if _, err := f.Read(got, 0); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAsyncWriteSubmitsQueuedBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(nil, path, ModeWriteAsyncPOSIX)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 300)
	for i := range buf {
		buf[i] = byte(i)
	}
	f.PrepareAsync(buf, 0, len(buf), 100)
	if got := f.PendingAsync(buf); got != 3 {
		t.Fatalf("expected 3 pending blocks, got %d", got)
	}

	for i := 0; i < 3; i++ {
		submitted, mustDisable, err := f.SubmitNextAsync(buf)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if mustDisable {
			t.Fatalf("submit %d: unexpected mustDisableDirectIO", i)
		}
		if !submitted {
			t.Fatalf("submit %d: expected a block to submit", i)
		}
	}
	if got := f.PendingAsync(buf); got != 0 {
		t.Fatalf("expected queue drained, got %d pending", got)
	}

	readBack := make([]byte, 300)
	rf, err := Open(nil, path, ModeRead)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rf.Close()
	if _, err := rf.Read(readBack, 0); err != nil {
		t.Fatalf("verify read: %v", err)
	}
	if string(readBack) != string(buf) {
		t.Fatal("async-written content does not match source buffer")
	}
}

func TestAsyncSubmitSignalsDirectIODisableOnUnalignedBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	f, err := Open(nil, path, ModeWriteAsyncPOSIX)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	f.EnableDirectIO(512)

	buf := make([]byte, 700)
	f.PrepareAsync(buf, 0, len(buf), 0)

	submitted, mustDisable, err := f.SubmitNextAsync(buf)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted {
		t.Fatal("expected the unaligned block to not be submitted")
	}
	if !mustDisable {
		t.Fatal("expected mustDisableDirectIO signal")
	}

	f.DisableDirectIO()
	submitted, mustDisable, err = f.SubmitNextAsync(buf)
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if mustDisable || !submitted {
		t.Fatalf("expected retry to submit cleanly, got submitted=%v mustDisable=%v", submitted, mustDisable)
	}
}
