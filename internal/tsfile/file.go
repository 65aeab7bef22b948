package tsfile

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"themis/internal/abort"
	"themis/internal/logging"
)

// File is a single-path handle in one of the modes enumerated by Mode.
// It is not safe for concurrent use by multiple goroutines against the
// same path; callers serialize their own access.
type File struct {
	logger *slog.Logger
	path   string
	mode   Mode
	f      *os.File

	mu           sync.Mutex
	directIO     bool
	alignment    int
	preallocated bool

	cursor   int64 // high-water byte offset, sync modes
	position int64 // logical position, async modes

	alignedBytesRead    uint64
	alignedBytesWritten uint64

	pendingRead  map[uintptr][]*controlBlock
	pendingWrite map[uintptr][]*controlBlock
}

// Open opens path in mode, creating it for writable modes.
func Open(logger *slog.Logger, path string, mode Mode) (*File, error) {
	logger = logging.Default(logger).With("component", "tsfile")
	if mode == ModeClosed {
		abort.Fatalf(logger, "tsfile: cannot open %q in CLOSED mode", path)
	}
	flags := osFlags(mode)
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	return &File{
		logger:       logger,
		path:         path,
		mode:         mode,
		f:            f,
		pendingRead:  make(map[uintptr][]*controlBlock),
		pendingWrite: make(map[uintptr][]*controlBlock),
	}, nil
}

func osFlags(mode Mode) int {
	switch mode {
	case ModeRead, ModeReadAsyncPOSIX, ModeReadAsyncNative:
		return os.O_RDONLY
	case ModeWrite, ModeWriteAsyncPOSIX, ModeWriteAsyncNative:
		return os.O_RDWR | os.O_CREATE
	case ModeReadWrite:
		return os.O_RDWR | os.O_CREATE
	default:
		return os.O_RDONLY
	}
}

func (f *File) Path() string { return f.path }
func (f *File) Mode() Mode   { return f.mode }

// AlignedBytesWritten is the total byte count transferred with direct
// I/O active across the handle's lifetime.
func (f *File) AlignedBytesWritten() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alignedBytesWritten
}

// AlignedBytesRead is the read-side counterpart of AlignedBytesWritten.
func (f *File) AlignedBytesRead() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alignedBytesRead
}

// EnableDirectIO turns on direct I/O with the given alignment. It may
// be toggled at any point after open. Direct I/O here governs the
// alignment checks, the aligned-prefix/unaligned-tail split and the
// aligned byte counters; the descriptor is not switched to O_DIRECT, so
// transfers still go through the page cache.
func (f *File) EnableDirectIO(alignment int) {
	if alignment <= 0 {
		abort.Fatalf(f.logger, "tsfile: direct I/O alignment must be positive, got %d", alignment)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directIO = true
	f.alignment = alignment
}

// DisableDirectIO turns direct I/O back off.
func (f *File) DisableDirectIO() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directIO = false
}

// Preallocate requires a writable mode and arranges contiguous disk
// blocks for size bytes without advancing the high-water mark.
func (f *File) Preallocate(size int64) {
	if !f.mode.writable() {
		abort.Fatalf(f.logger, "tsfile: preallocate on non-writable mode %s", f.mode)
	}
	if err := preallocate(f.f, size); err != nil {
		abort.Fatalf(f.logger, "tsfile: preallocate %q to %d: %v", f.path, size, err)
	}
	f.mu.Lock()
	f.preallocated = true
	f.mu.Unlock()
}

// Write transfers buf at offset. If direct I/O is active and len(buf)
// is not a multiple of the alignment, the aligned prefix is written
// with direct I/O and the remainder is written with direct I/O
// transparently disabled for the tail, matching the split described
// for unaligned direct writes. offset itself must be alignment-
// aligned while direct I/O is active; that mismatch is fatal rather
// than something the file can silently repair.
func (f *File) Write(buf []byte, offset int64) (int, error) {
	if !f.mode.writable() || f.mode.async() {
		abort.Fatalf(f.logger, "tsfile: write on mode %s", f.mode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeLocked(buf, offset)
}

func (f *File) writeLocked(buf []byte, offset int64) (int, error) {
	if !f.directIO || len(buf) == 0 {
		n, err := f.f.WriteAt(buf, offset)
		if err != nil {
			abort.Fatalf(f.logger, "tsfile: write %q at %d: %v", f.path, offset, err)
		}
		f.advanceCursorLocked(offset + int64(n))
		return n, nil
	}

	if offset%int64(f.alignment) != 0 {
		abort.Fatalf(f.logger, "tsfile: direct write at unaligned offset %d (alignment %d)", offset, f.alignment)
	}

	alignedLen := (len(buf) / f.alignment) * f.alignment
	written := 0
	if alignedLen > 0 {
		n, err := f.f.WriteAt(buf[:alignedLen], offset)
		if err != nil {
			abort.Fatalf(f.logger, "tsfile: direct write %q at %d: %v", f.path, offset, err)
		}
		f.alignedBytesWritten += uint64(n)
		f.advanceCursorLocked(offset + int64(n))
		written += n
	}
	if alignedLen < len(buf) {
		// Tail is shorter than one alignment unit; direct I/O is
		// transparently disabled to carry it.
		f.directIO = false
		tail := buf[alignedLen:]
		n, err := f.f.WriteAt(tail, offset+int64(alignedLen))
		if err != nil {
			abort.Fatalf(f.logger, "tsfile: write tail %q at %d: %v", f.path, offset+int64(alignedLen), err)
		}
		f.advanceCursorLocked(offset + int64(alignedLen) + int64(n))
		written += n
	}
	return written, nil
}

// Read is Write's read-side counterpart; early EOF is fatal, matching
// the failure model for every other POSIX-call error.
func (f *File) Read(buf []byte, offset int64) (int, error) {
	if !f.mode.readable() || f.mode.async() {
		abort.Fatalf(f.logger, "tsfile: read on mode %s", f.mode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked(buf, offset)
}

func (f *File) readLocked(buf []byte, offset int64) (int, error) {
	if !f.directIO || len(buf) == 0 {
		n, err := f.f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			abort.Fatalf(f.logger, "tsfile: read %q at %d: %v", f.path, offset, err)
		}
		if err == io.EOF && n < len(buf) {
			abort.Fatalf(f.logger, "tsfile: early EOF reading %q at %d", f.path, offset)
		}
		return n, nil
	}

	if offset%int64(f.alignment) != 0 {
		abort.Fatalf(f.logger, "tsfile: direct read at unaligned offset %d (alignment %d)", offset, f.alignment)
	}

	alignedLen := (len(buf) / f.alignment) * f.alignment
	read := 0
	if alignedLen > 0 {
		n, err := f.f.ReadAt(buf[:alignedLen], offset)
		if err != nil && err != io.EOF {
			abort.Fatalf(f.logger, "tsfile: direct read %q at %d: %v", f.path, offset, err)
		}
		if err == io.EOF && n < alignedLen {
			abort.Fatalf(f.logger, "tsfile: early EOF reading %q at %d", f.path, offset)
		}
		f.alignedBytesRead += uint64(n)
		read += n
	}
	if alignedLen < len(buf) {
		f.directIO = false
		tail := buf[alignedLen:]
		n, err := f.f.ReadAt(tail, offset+int64(alignedLen))
		if err != nil && err != io.EOF {
			abort.Fatalf(f.logger, "tsfile: read tail %q at %d: %v", f.path, offset+int64(alignedLen), err)
		}
		if err == io.EOF && n < len(tail) {
			abort.Fatalf(f.logger, "tsfile: early EOF reading %q at %d", f.path, offset+int64(alignedLen))
		}
		read += n
	}
	return read, nil
}

func (f *File) advanceCursorLocked(high int64) {
	if high > f.cursor {
		f.cursor = high
	}
}

// Close runs the fixed close sequence: sync, conditional truncate to
// the high-water mark, sync again, advise the kernel to drop cached
// pages, then release the descriptor.
func (f *File) Close() error {
	if f.mode == ModeClosed {
		return nil
	}
	if err := f.doSync(); err != nil {
		return err
	}
	f.mu.Lock()
	high := f.cursor
	if f.mode.async() {
		high = f.position
	}
	f.mu.Unlock()
	if f.mode.writable() {
		if err := f.f.Truncate(high); err != nil {
			abort.Fatalf(f.logger, "tsfile: truncate %q to %d: %v", f.path, high, err)
		}
	}
	if err := f.doSync(); err != nil {
		return err
	}
	_ = adviseDontNeed(f.f)
	err := f.f.Close()
	f.mode = ModeClosed
	return err
}

// Sync flushes pending writes: plain fsync for sync and native-async
// write modes, aio-fsync-with-polling for POSIX-async write mode
// (collapsed here to the same fsync since Go's runtime has no
// portable aio_fsync), a no-op for read modes.
func (f *File) Sync() error {
	return f.doSync()
}

func (f *File) doSync() error {
	if !f.mode.writable() {
		return nil
	}
	return f.f.Sync()
}

// Unlink removes path; only valid once the handle is CLOSED.
func (f *File) Unlink() error {
	if f.mode != ModeClosed {
		abort.Fatalf(f.logger, "tsfile: unlink %q while handle is still open (mode %s)", f.path, f.mode)
	}
	return os.Remove(f.path)
}
