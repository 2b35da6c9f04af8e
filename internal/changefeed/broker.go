// Package changefeed broadcasts committed row changes to SSE clients and
// in-process consumers.
package changefeed

import (
	"strconv"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Change is one committed row mutation.
type Change struct {
	Table string    `json:"table"`
	Op    string    `json:"op"`
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
}

// Consumer receives every change from the broker loop. Implementations must
// not block; hand heavy work off to another goroutine.
type Consumer interface {
	HandleChange(Change)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(Change)

func (f ConsumerFunc) HandleChange(c Change) { f(c) }

// Event is an ad-hoc message for SSE clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Stats is a point-in-time view of the broker.
type Stats struct {
	Clients   int
	Consumers int
	// Seq is the id of the last frame sent.
	Seq uint64
	// Dropped counts frames skipped because a client buffer was full.
	Dropped uint64
}

// GraphUpdated is emitted after changes to any graph table: at once when
// the throttle window is open, otherwise once when it reopens.
const GraphUpdated = "graph.updated"

var graphTables = map[string]bool{
	"persons":       true,
	"teams":         true,
	"projects":      true,
	"decisions":     true,
	"relationships": true,
}

const (
	defaultGraphThrottle = 2 * time.Second
	clientBuffer         = 64
)

// Broker fans changes out to SSE clients and registered consumers.
//
// One loop goroutine owns the hub. Every exported method is a message to
// that loop, so no field of the hub is touched from anywhere else.
type Broker struct {
	keepalive time.Duration

	ops     chan func(*hub)
	changes chan Change
	events  chan Event

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// hub is the loop-owned state.
type hub struct {
	clients   map[chan []byte]struct{}
	consumers []Consumer
	graphMin  time.Duration
	lastGraph time.Time
	// trailing is armed while a graph change waits for the window.
	trailing *time.Timer
	seq      uint64
	dropped  uint64
}

// NewBroker creates a broker; graph.updated is emitted at most once per
// graphThrottle, and a change inside the window is never left unannounced.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = defaultGraphThrottle
	}
	b := &Broker{
		keepalive: defaultKeepalive,
		ops:       make(chan func(*hub)),
		changes:   make(chan Change, 1024),
		events:    make(chan Event, 256),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	h := &hub{
		clients:  make(map[chan []byte]struct{}),
		graphMin: graphThrottle,
	}
	go b.run(h)
	return b
}

func (b *Broker) run(h *hub) {
	defer close(b.stopped)
	for {
		var trailing <-chan time.Time
		if h.trailing != nil {
			trailing = h.trailing.C
		}
		select {
		case <-b.stopCh:
			if h.trailing != nil {
				h.trailing.Stop()
			}
			for ch := range h.clients {
				close(ch)
			}
			return
		case <-trailing:
			h.trailing = nil
			h.graphUpdated(time.Now())
		case op := <-b.ops:
			op(h)
		case ev := <-b.events:
			h.broadcast(ev.Type, ev.Data)
		case c := <-b.changes:
			h.apply(c)
		}
	}
}

func (h *hub) apply(c Change) {
	h.broadcast(c.Table+"."+c.Op, c)
	for _, consumer := range h.consumers {
		consumer.HandleChange(c)
	}
	if !graphTables[c.Table] {
		return
	}
	now := time.Now()
	if wait := h.graphMin - now.Sub(h.lastGraph); wait > 0 {
		if h.trailing == nil {
			h.trailing = time.NewTimer(wait)
		}
		return
	}
	if h.trailing != nil {
		h.trailing.Stop()
		h.trailing = nil
	}
	h.graphUpdated(now)
}

func (h *hub) graphUpdated(now time.Time) {
	h.lastGraph = now
	h.broadcast(GraphUpdated, map[string]string{})
}

func (h *hub) broadcast(typ string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	h.seq++
	frame := encodeFrame(h.seq, typ, payload)
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
			h.dropped++
		}
	}
}

func encodeFrame(seq uint64, typ string, payload []byte) []byte {
	buf := make([]byte, 0, len(typ)+len(payload)+32)
	buf = append(buf, "id: "...)
	buf = strconv.AppendUint(buf, seq, 10)
	buf = append(buf, "\nevent: "...)
	buf = append(buf, typ...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, payload...)
	return append(buf, "\n\n"...)
}

// do runs op on the loop and reports whether it ran.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	done := make(chan struct{})
	select {
	case b.ops <- func(h *hub) { op(h); close(done) }:
	case <-b.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// AddConsumer registers an in-process consumer of every future change.
func (b *Broker) AddConsumer(c Consumer) {
	b.do(func(h *hub) { h.consumers = append(h.consumers, c) })
}

// Notify implements store.Notifier.
func (b *Broker) Notify(table, op, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changes <- Change{Table: table, Op: op, ID: id, At: time.Now().UTC()}:
	case <-b.stopped:
	}
}

// Publish sends an ad-hoc event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- event:
	case <-b.stopped:
	}
}

// Subscribe adds a new SSE client and returns its channel. The channel is
// closed by Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// Stats reports the broker state; a closed broker reports zero clients.
func (b *Broker) Stats() Stats {
	var s Stats
	b.do(func(h *hub) {
		s = Stats{Clients: len(h.clients), Consumers: len(h.consumers), Seq: h.seq, Dropped: h.dropped}
	})
	return s
}

// ClientCount returns the number of connected SSE clients.
func (b *Broker) ClientCount() int {
	return b.Stats().Clients
}
