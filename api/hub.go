package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/untillpro/goutils/logger"

	"voting-coordinator/service"
)

// Hub streams coordinator events to HTTP clients as server-sent events.
// Slow clients miss events instead of blocking the coordinator.
type Hub struct {
	mu      sync.Mutex
	clients map[chan service.Event]struct{}
	buffer  int
	closed  bool
	done    chan struct{}
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		clients: make(map[chan service.Event]struct{}),
		buffer:  buffer,
		done:    make(chan struct{}),
	}
}

func (h *Hub) Publish(ev service.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			logger.Verbose("dropping", ev.Kind, "event for slow client")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
}

func (h *Hub) subscribe() (chan service.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan service.Event, h.buffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *Hub) unsubscribe(ch chan service.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ch)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, ok := h.subscribe()
	if !ok {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error("failed to encode event:", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				logger.Verbose("event client went away:", err)
				return
			}
			flusher.Flush()
		}
	}
}
