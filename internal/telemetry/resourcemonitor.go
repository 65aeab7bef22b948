package telemetry

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"themis/internal/logging"
)

// ResourceSnapshot is one named resource's current capacity/usage,
// mirroring resourcesched.Scheduler's capacity/availability pair.
type ResourceSnapshot struct {
	Name      string `json:"name"`
	Capacity  uint64 `json:"capacity"`
	Available uint64 `json:"available"`
}

// SnapshotProvider returns the current state of every monitored
// resource. Called once per incoming connection.
type SnapshotProvider func() []ResourceSnapshot

// ResourceMonitor serves a JSON snapshot of resource state over TCP: a
// client connects, reads one JSON document, and the connection closes.
// There is no request body or protocol beyond "connect to read".
type ResourceMonitor struct {
	logger   *slog.Logger
	ln       net.Listener
	provider SnapshotProvider

	mu     sync.Mutex
	closed bool
}

// NewResourceMonitor binds addr (e.g. "127.0.0.1:0" for an
// OS-assigned port, convenient in tests) and returns a ResourceMonitor
// ready to Serve.
func NewResourceMonitor(logger *slog.Logger, addr string, provider SnapshotProvider) (*ResourceMonitor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &ResourceMonitor{logger: logging.Default(logger).With("component", "telemetry"), ln: ln, provider: provider}, nil
}

// Addr returns the listener's bound address.
func (m *ResourceMonitor) Addr() net.Addr { return m.ln.Addr() }

// Serve accepts connections until Close is called. Intended to run on
// its own goroutine (or inside a worker.Worker).
func (m *ResourceMonitor) Serve() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			m.logger.Error("telemetry: accept failed", "error", err)
			return
		}
		go m.handle(conn)
	}
}

func (m *ResourceMonitor) handle(conn net.Conn) {
	defer conn.Close()
	enc := json.NewEncoder(conn)
	if err := enc.Encode(m.provider()); err != nil {
		m.logger.Error("telemetry: encoding snapshot failed", "error", err)
	}
}

// Close stops accepting new connections.
func (m *ResourceMonitor) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.ln.Close()
}
