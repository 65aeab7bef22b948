package tsfile

import (
	"unsafe"

	"themis/internal/abort"
)

// controlBlock is one fragment of a prepared async request. The file
// keeps these queued per client buffer and lets the caller dequeue
// them one at a time with SubmitNextAsync.
type controlBlock struct {
	offset int64
	buf    []byte
}

func bufferKey(buffer []byte) uintptr {
	if len(buffer) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buffer[0]))
}

// PrepareAsync fragments a size-byte request against buffer into
// control blocks of at most maxIOSize bytes (0 means a single
// unfragmented block) and queues them keyed by the buffer's address.
// Nothing is submitted yet.
func (f *File) PrepareAsync(buffer []byte, offset int64, size int, maxIOSize int) {
	if !f.mode.async() {
		abort.Fatalf(f.logger, "tsfile: prepare_async on non-async mode %s", f.mode)
	}
	if maxIOSize <= 0 || maxIOSize > size {
		maxIOSize = size
	}
	key := bufferKey(buffer)

	f.mu.Lock()
	defer f.mu.Unlock()

	var blocks []*controlBlock
	remaining := size
	pos := 0
	for remaining > 0 {
		n := maxIOSize
		if n > remaining {
			n = remaining
		}
		blocks = append(blocks, &controlBlock{offset: offset + int64(pos), buf: buffer[pos : pos+n]})
		pos += n
		remaining -= n
	}

	if f.mode.asyncIsWrite() {
		f.pendingWrite[key] = append(f.pendingWrite[key], blocks...)
	} else {
		f.pendingRead[key] = append(f.pendingRead[key], blocks...)
	}
}

// SubmitNextAsync dequeues and performs one control block queued for
// buffer. If direct I/O is active and the block's length is not a
// multiple of alignment, the block is left queued and submitted=false,
// mustDisableDirectIO=true is returned: the caller must disable direct
// I/O and retry before the block can go out. Our backing transport has
// no real kernel AIO queue, so submission completes synchronously;
// PendingAsync exists for callers written against a poll-to-completion
// loop, and drops by one as soon as a block is submitted.
func (f *File) SubmitNextAsync(buffer []byte) (submitted bool, mustDisableDirectIO bool, err error) {
	if !f.mode.async() {
		abort.Fatalf(f.logger, "tsfile: submit_next_async on non-async mode %s", f.mode)
	}
	key := bufferKey(buffer)
	isWrite := f.mode.asyncIsWrite()

	f.mu.Lock()
	defer f.mu.Unlock()

	queue := f.pendingRead
	if isWrite {
		queue = f.pendingWrite
	}
	blocks := queue[key]
	if len(blocks) == 0 {
		return false, false, nil
	}
	head := blocks[0]

	if f.directIO && len(head.buf)%f.alignment != 0 {
		return false, true, nil
	}

	queue[key] = blocks[1:]

	if isWrite {
		n, werr := f.f.WriteAt(head.buf, head.offset)
		if werr != nil {
			abort.Fatalf(f.logger, "tsfile: async write %q at %d: %v", f.path, head.offset, werr)
		}
		if f.directIO {
			f.alignedBytesWritten += uint64(n)
		}
		f.position = head.offset + int64(n)
		return true, false, nil
	}

	n, rerr := f.f.ReadAt(head.buf, head.offset)
	if rerr != nil && n < len(head.buf) {
		abort.Fatalf(f.logger, "tsfile: async read %q at %d: %v", f.path, head.offset, rerr)
	}
	if f.directIO {
		f.alignedBytesRead += uint64(n)
	}
	f.position = head.offset + int64(n)
	return true, false, nil
}

// PendingAsync reports how many control blocks remain queued for
// buffer, for callers driving their own completion loop.
func (f *File) PendingAsync(buffer []byte) int {
	key := bufferKey(buffer)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode.asyncIsWrite() {
		return len(f.pendingWrite[key])
	}
	return len(f.pendingRead[key])
}
