package statuslog

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPostBeforeStartIsNoop(t *testing.T) {
	var buf bytes.Buffer
	p := New(nil, &buf)
	p.Post(Status, "should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestDrainsQueueOnStop(t *testing.T) {
	var buf bytes.Buffer
	p := New(nil, &buf)
	p.Start()
	p.Post(Status, "starting stage %s", "mapper")
	p.Post(Statistic, "records=%d", 42)
	p.Post(Param, "worker_count=%d", 4)
	p.Stop()

	out := buf.String()
	if !strings.Contains(out, "[STATUS] starting stage mapper") {
		t.Fatalf("missing status line: %q", out)
	}
	if !strings.Contains(out, "[STATISTIC] records=42") {
		t.Fatalf("missing statistic line: %q", out)
	}
	if !strings.Contains(out, "[PARAM] worker_count=4") {
		t.Fatalf("missing param line: %q", out)
	}
}

func TestPostAfterStopIsNoop(t *testing.T) {
	var buf bytes.Buffer
	p := New(nil, &buf)
	p.Start()
	p.Stop()
	p.Post(Status, "dropped")
	time.Sleep(10 * time.Millisecond)
	if buf.Len() != 0 {
		t.Fatalf("expected no output after stop, got %q", buf.String())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := New(nil, &bytes.Buffer{})
	p.Start()
	p.Stop()
	p.Stop() // must not hang or panic
}
