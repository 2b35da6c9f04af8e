package changefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestNotifyBroadcastsTableEvent(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify("conflicts", "insert", "c-1")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: conflicts.insert") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"c-1"`) {
			t.Errorf("missing id in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestGraphTablesEmitThrottledGraphUpdated(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify("persons", "insert", "p-1")
	b.Notify("relationships", "insert", "r-1")
	b.Notify("events", "insert", "e-1")

	time.Sleep(50 * time.Millisecond)
	graphCount, tableCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "graph.updated") {
			graphCount++
		} else {
			tableCount++
		}
	}
	if tableCount != 3 {
		t.Errorf("table events = %d, want 3", tableCount)
	}
	if graphCount != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graphCount)
	}
}

func TestGraphUpdatedTrailingEdge(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	graphEvents := func(frames []string) int {
		n := 0
		for _, s := range frames {
			if strings.Contains(s, "event: graph.updated") {
				n++
			}
		}
		return n
	}

	b.Notify("persons", "insert", "p-1")
	b.Notify("decisions", "update", "d-1")
	b.Notify("teams", "insert", "t-1")
	time.Sleep(20 * time.Millisecond)
	seen := graphEvents(drain(ch))
	if seen != 1 {
		t.Fatalf("graph events before window closes = %d, want 1", seen)
	}

	// The changes after the first are announced once the window reopens.
	waitFor(t, func() bool {
		seen += graphEvents(drain(ch))
		return seen == 2
	})
	time.Sleep(250 * time.Millisecond)
	if extra := graphEvents(drain(ch)); extra != 0 {
		t.Errorf("extra graph events = %d", extra)
	}

	// A lone change after a quiet period goes out at once.
	b.Notify("projects", "insert", "pr-1")
	time.Sleep(20 * time.Millisecond)
	if n := graphEvents(drain(ch)); n != 1 {
		t.Errorf("leading graph events = %d, want 1", n)
	}
}

func TestConsumersReceiveEveryChange(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	var (
		mu  sync.Mutex
		got []Change
	)
	done := make(chan struct{}, 3)
	b.AddConsumer(ConsumerFunc(func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
		done <- struct{}{}
	}))

	b.Notify("persons", "insert", "1")
	b.Notify("decisions", "update", "2")
	b.Notify("events", "insert", "3")

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for consumer")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if got[1].Table != "decisions" || got[1].Op != "update" || got[1].ID != "2" {
		t.Errorf("second change = %+v", got[1])
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "decisions.update", Data: map[string]string{"id": "x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.Body.String(); !strings.Contains(body, "event: decisions.update") {
		t.Errorf("handler output missing event: %q", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+6; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	waitFor(t, func() bool { return b.Stats().Seq == clientBuffer+6 })

	if s := b.Stats(); s.Dropped != 6 {
		t.Errorf("dropped = %d, want 6", s.Dropped)
	}
	frames := drain(ch)
	if len(frames) != clientBuffer {
		t.Fatalf("buffered = %d, want %d", len(frames), clientBuffer)
	}
	if !strings.HasPrefix(frames[0], "id: 1\nevent: test\n") {
		t.Errorf("first frame = %q", frames[0])
	}
}

func TestSSEKeepalive(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	b.SetKeepalive(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx))

	if !strings.Contains(w.Body.String(), ": keepalive") {
		t.Errorf("no keepalive frame in %q", w.Body.String())
	}
	if b.ClientCount() != 0 {
		t.Error("client not removed after disconnect")
	}
}

func TestCloseStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "x"})
	b.Notify("persons", "insert", "1")
	b.AddConsumer(ConsumerFunc(func(Change) {}))
}
