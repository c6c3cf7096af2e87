// Package sse streams catalog change notifications to browsers over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeItemsSaved      = "items.saved"
	TypeItemsDeprecated = "items.deprecated"
	TypeCatalogChanged  = "catalog.changed"
	TypeSettingsChanged = "settings.reloaded"
)

// Event is one message to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SaveEvent summarises a finished save.
type SaveEvent struct {
	Created    map[string]string `json:"created,omitempty"`
	Updated    []string          `json:"updated,omitempty"`
	Deprecated []string          `json:"deprecated,omitempty"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithThrottle sets the minimum gap between catalog.changed events.
func WithThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.changedMin = d
		}
	}
}

// WithKeepAlive makes ServeHTTP write a comment line every d so idle proxies
// keep the stream open. Zero disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		b.keepAlive = d
	}
}

// Broker fans events out to connected clients.
//
// One goroutine owns the client set and the throttle clock; every public
// method talks to it over channels.
type Broker struct {
	changedMin time.Duration
	keepAlive  time.Duration

	joinCh  chan chan []byte
	leaveCh chan chan []byte
	eventCh chan Event
	saveCh  chan SaveEvent
	countCh chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		changedMin: 2 * time.Second,
		joinCh:     make(chan chan []byte),
		leaveCh:    make(chan chan []byte),
		eventCh:    make(chan Event, 256),
		saveCh:     make(chan SaveEvent, 64),
		countCh:    make(chan chan int),
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", e.Type, payload), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastChanged time.Time

	send := func(e Event) {
		msg, err := encode(e)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// Slow client; drop rather than stall everyone.
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

		case ch := <-b.joinCh:
			clients[ch] = struct{}{}

		case ch := <-b.leaveCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case e := <-b.eventCh:
			send(e)

		case s := <-b.saveCh:
			if len(s.Created) > 0 || len(s.Updated) > 0 {
				send(Event{Type: TypeItemsSaved, Data: SaveEvent{Created: s.Created, Updated: s.Updated}})
			}
			if len(s.Deprecated) > 0 {
				send(Event{Type: TypeItemsDeprecated, Data: map[string][]string{"ids": s.Deprecated}})
			}
			if now := time.Now(); now.Sub(lastChanged) >= b.changedMin {
				lastChanged = now
				send(Event{Type: TypeCatalogChanged, Data: map[string]string{}})
			}

		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.joinCh <- ch:
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
	case b.leaveCh <- ch:
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
	case b.countCh <- resp:
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

// Publish broadcasts an arbitrary event.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- e:
	case <-b.stopped:
	}
}

// PublishSave announces a finished save: items.saved for created and
// updated items, items.deprecated for retired ones, and a throttled
// catalog.changed.
func (b *Broker) PublishSave(s SaveEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.saveCh <- s:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
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
