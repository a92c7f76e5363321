// Package sse implements a Server-Sent Events broker for live reload of
// compiled records.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast. Events with a Collection are
// only delivered to clients watching that collection or all collections.
type Event struct {
	Type       string      `json:"type"`
	Collection string      `json:"-"`
	Data       interface{} `json:"data"`
}

// Record event kinds.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Filter selects what a subscriber receives. LastEventID > 0 replays the
// retained events published after that id.
type Filter struct {
	Collection  string
	LastEventID uint64
}

func (f Filter) matches(collection string) bool {
	return f.Collection == "" || collection == "" || f.Collection == collection
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets the interval of keep-alive comments sent to idle
// clients. Zero disables them.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// WithHistory sets how many events are retained for Last-Event-ID replay.
func WithHistory(n int) Option {
	return func(b *Broker) { b.historySize = n }
}

type recordEventReq struct {
	kind       string
	collection string
	id         string
}

type subscribeReq struct {
	ch     chan []byte
	filter Filter
}

type retained struct {
	seq        uint64
	collection string
	raw        []byte
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, event history, per-collection throttle timestamps). Public methods
// communicate with this loop through channels, so no mutexes are required.
type Broker struct {
	collectionMin time.Duration
	heartbeat     time.Duration
	historySize   int

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	recordEventCh chan recordEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. collection.updated events are sent at
// most once per throttle interval for each collection.
func NewBroker(throttle time.Duration, opts ...Option) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		collectionMin: throttle,
		heartbeat:     15 * time.Second,
		historySize:   128,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		recordEventCh: make(chan recordEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]Filter)
	lastUpdated := make(map[string]time.Time)
	var (
		seq     uint64
		history []retained
	)

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Client buffer full; skip to avoid blocking broker loop.
		}
	}

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		if b.historySize > 0 {
			history = append(history, retained{seq: seq, collection: event.Collection, raw: raw})
			if len(history) > b.historySize {
				history = history[len(history)-b.historySize:]
			}
		}

		for ch, f := range clients {
			if f.matches(event.Collection) {
				send(ch, raw)
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = req.filter
			if req.filter.LastEventID > 0 {
				for _, e := range history {
					if e.seq > req.filter.LastEventID && req.filter.matches(e.collection) {
						send(req.ch, e.raw)
					}
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.recordEventCh:
			switch req.kind {
			case KindCreated, KindUpdated, KindDeleted:
				broadcast(Event{
					Type:       "record." + req.kind,
					Collection: req.collection,
					Data:       map[string]string{"collection": req.collection, "id": req.id},
				})
			default:
				continue
			}

			now := time.Now()
			if now.Sub(lastUpdated[req.collection]) >= b.collectionMin {
				lastUpdated[req.collection] = now
				broadcast(Event{
					Type:       "collection.updated",
					Collection: req.collection,
					Data:       map[string]string{"collection": req.collection},
				})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe(f Filter) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, filter: f}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishRecordEvent publishes a record change and a throttled
// collection.updated event for its collection.
func (b *Broker) PublishRecordEvent(kind, collection, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.recordEventCh <- recordEventReq{kind: kind, collection: collection, id: id}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// collection query parameter narrows the stream; a Last-Event-ID header
// replays retained events the client missed.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	f := Filter{Collection: r.URL.Query().Get("collection")}
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		f.LastEventID, _ = strconv.ParseUint(last, 10, 64)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(f)
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		ticker := time.NewTicker(b.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
