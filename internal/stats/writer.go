package stats

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"themis/internal/abort"
	"themis/internal/logging"
)

// DefaultDrainInterval is how often the writer's background loop checks
// registered containers for opportunistic flush, absent both queues
// having anything to do (it then sleeps this long rather than spin).
const DefaultDrainInterval = 500 * time.Millisecond

type registeredStat struct {
	container Container
	desc      *LogLineDescriptor
}

// Writer is the single background goroutine that owns the stats output
// stream. Worker goroutines call Add* on the containers they were
// handed at registration time without ever touching the writer
// directly; the writer periodically visits every registered container
// and drains whichever ones are ready. Each container's Write takes its
// buffered samples under the container's own lock and clears them in
// place, so producers are never blocked on file I/O.
//
// A writer also owns a secondary queue of one-off LogDatum values,
// drained ahead of any phase or epoch change so metadata about a phase
// is never interleaved with stats from the phase that follows it.
type Writer struct {
	logger *slog.Logger

	mu   sync.Mutex
	out  io.Writer
	zw   *zstd.Encoder
	cl   io.Closer
	done chan struct{}
	stop chan struct{}

	stats     []*registeredStat
	datumDesc *LogLineDescriptor
	datums    []LogDatum

	phase string
	epoch uint64

	interval time.Duration
}

// NewWriter wraps out (typically an *os.File) as the stats output
// stream. If compress is true, output is zstd-compressed via
// klauspost/compress, matching the teacher's preference for a
// third-party streaming codec over ad hoc framing.
func NewWriter(logger *slog.Logger, out io.Writer, compress bool) *Writer {
	w := &Writer{
		logger:    logging.Default(logger).With("component", "stats"),
		out:       out,
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
		datumDesc: datumDescriptor(),
		interval:  DefaultDrainInterval,
	}
	if cl, ok := out.(io.Closer); ok {
		w.cl = cl
	}
	if compress {
		enc, err := zstd.NewWriter(out)
		if err != nil {
			abort.Fatalf(w.logger, "stats: creating zstd encoder: %v", err)
		}
		w.zw = enc
		w.out = enc
	}
	return w
}

// SetDrainInterval overrides the background drain period. Intended for
// tests that want a tighter loop than the 500ms default.
func (w *Writer) SetDrainInterval(d time.Duration) { w.interval = d }

// Register adds a container to the writer's drain set. desc must
// already be finalized (Logger does this via container.Setup before
// calling Register).
func (w *Writer) Register(container Container, desc *LogLineDescriptor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats = append(w.stats, &registeredStat{container: container, desc: desc})
}

// EnqueueDatum queues a one-off named value for the next drain pass.
func (w *Writer) EnqueueDatum(d LogDatum) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.datums = append(w.datums, d)
}

// SetPhase changes the phase tag attached to every subsequent line,
// acting as a phase-change token: the log-data queue is drained first,
// so metadata about the ending phase never bleeds into the new one.
func (w *Writer) SetPhase(phase string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drainDatumsLocked()
	w.phase = phase
}

// SetEpoch changes the epoch tag, with the same drain-first ordering as
// SetPhase.
func (w *Writer) SetEpoch(epoch uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drainDatumsLocked()
	w.epoch = epoch
}

// Start launches the background drain loop. Safe to call at most once.
func (w *Writer) Start() {
	go w.run()
}

func (w *Writer) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			close(w.done)
			return
		case <-ticker.C:
			w.mu.Lock()
			w.drainDatumsLocked()
			w.drainReadyLocked()
			w.mu.Unlock()
		}
	}
}

// Stop halts the background loop and performs one final forced drain of
// every registered container regardless of readiness (Histogram and
// Summary are never "ready" and are only ever written here), then
// closes the underlying stream.
func (w *Writer) Stop() {
	close(w.stop)
	<-w.done

	w.mu.Lock()
	w.drainDatumsLocked()
	for _, rs := range w.stats {
		if err := rs.container.Write(w.out, rs.desc, w.phase, w.epoch); err != nil {
			w.logger.Error("stats: final write failed", "error", err)
		}
	}
	w.mu.Unlock()

	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			w.logger.Error("stats: closing zstd encoder", "error", err)
		}
	}
	if w.cl != nil {
		if err := w.cl.Close(); err != nil {
			w.logger.Error("stats: closing stats output", "error", err)
		}
	}
}

func (w *Writer) drainDatumsLocked() {
	for _, d := range w.datums {
		if err := writeDatum(w.out, d, w.datumDesc, w.phase, w.epoch); err != nil {
			w.logger.Error("stats: writing log datum failed", "error", err)
		}
	}
	w.datums = nil
}

// drainReadyLocked writes out every container with buffered data. Write
// clears a container's samples in place, so the same instance keeps
// being the one producers hold a reference to; NewEmptyCopy exists for
// callers that need a detached, independently-configured instance
// rather than for this loop.
func (w *Writer) drainReadyLocked() {
	for _, rs := range w.stats {
		if !rs.container.IsReady() {
			continue
		}
		if err := rs.container.Write(w.out, rs.desc, w.phase, w.epoch); err != nil {
			w.logger.Error("stats: drain write failed", "error", err)
		}
	}
}
