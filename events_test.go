package reelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newEventDispatcher(EventsConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	d.Emit(context.Background(), Event{Type: EventSessionSet})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher dropped events")
	}
}

func TestDispatcherDeliversAndStamps(t *testing.T) {
	sink := NewChannelSink(4)
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 4}, sink)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	d.Emit(context.Background(), Event{Type: EventLoginSuccess, Username: "ana"})
	d.Close()

	select {
	case ev := <-sink.Events():
		if ev.ID == "" || !ev.Timestamp.Equal(fixed) || ev.Username != "ana" {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestDispatcherCloseFlushesQueue(t *testing.T) {
	sink := &countingSink{}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 128}, sink)
	for i := 0; i < 100; i++ {
		d.Emit(context.Background(), Event{Type: EventSessionSet})
	}
	d.Close()

	if got := sink.count.Load(); got != 100 {
		t.Fatalf("delivered %d, want 100", got)
	}

	d.Emit(context.Background(), Event{Type: EventSessionSet})
	if got := sink.count.Load(); got != 100 {
		t.Fatal("emit after close was delivered")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: EventSessionSet})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink")
	}
	close(sink.gate)
	d.Close()
}

func TestDispatcherBlockingHonorsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1}, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			d.Emit(ctx, Event{Type: EventSessionSet})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit did not return after context deadline")
	}
	close(sink.gate)
	d.Close()
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{ID: "1", Type: EventRequestUnauthorized, StatusCode: 401})
	sink.Emit(context.Background(), Event{ID: "2", Type: EventNavigateLogin})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != EventRequestUnauthorized || ev.StatusCode != 401 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	sink.Emit(context.Background(), Event{Type: EventRequestUnauthorized, Method: "GET", Path: "/tasks", StatusCode: 401})
	sink.Emit(context.Background(), Event{Type: EventLoginSuccess, Username: "ana"})

	out := buf.String()
	if !strings.Contains(out, "level=WARN msg=request.unauthorized") {
		t.Fatalf("missing warn line: %s", out)
	}
	if !strings.Contains(out, "level=INFO msg=login.success") || !strings.Contains(out, "username=ana") {
		t.Fatalf("missing info line: %s", out)
	}
}
