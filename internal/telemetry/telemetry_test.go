package telemetry

import (
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalLoggerTicksSamplers(t *testing.T) {
	var calls atomic.Int32
	results := make(chan uint64, 8)

	l := NewIntervalLogger(nil, 10*time.Millisecond, func(name string, v uint64) {
		results <- v
	})
	l.Register("gauge", func() uint64 {
		calls.Add(1)
		return 7
	})
	l.Start()
	defer l.Stop()

	select {
	case v := <-results:
		if v != 7 {
			t.Fatalf("expected sampled value 7, got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interval logger never ticked")
	}
}

func TestResourceMonitorServesSnapshot(t *testing.T) {
	m, err := NewResourceMonitor(nil, "127.0.0.1:0", func() []ResourceSnapshot {
		return []ResourceSnapshot{{Name: "memory", Capacity: 100, Available: 40}}
	})
	if err != nil {
		t.Fatalf("new resource monitor: %v", err)
	}
	go m.Serve()
	defer m.Close()

	conn, err := net.Dial("tcp", m.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var snapshots []ResourceSnapshot
	if err := json.NewDecoder(conn).Decode(&snapshots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Name != "memory" || snapshots[0].Available != 40 {
		t.Fatalf("unexpected snapshot: %+v", snapshots)
	}
}
