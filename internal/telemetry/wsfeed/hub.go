package wsfeed

import (
	"log/slog"
	"sync"
)

// broadcastMsg is one pending fan-out to clients subscribed to runID. An
// empty runID reaches no client, since Subscribe ignores empty run ids.
type broadcastMsg struct {
	runID string
	event *Event
}

// Hub keeps the set of connected sessions and routes each Event to the
// sessions subscribed to its run id, the telemetry-feed analogue of
// the teacher's workflow/execution websocket Hub.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	byRunID map[string]map[*Client]bool

	logger *slog.Logger
	mu     sync.RWMutex
}

// NewHub creates a Hub. logger may be nil, in which case a discard
// logger is used.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		byRunID:    make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Run drives the hub's event loop; call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	h.logger.Debug("wsfeed client registered", "client_id", c.id, "total", len(h.clients))
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)

	c.subs.mu.RLock()
	for runID := range c.subs.runs {
		if clients, ok := h.byRunID[runID]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.byRunID, runID)
			}
		}
	}
	c.subs.mu.RUnlock()

	h.logger.Debug("wsfeed client unregistered", "client_id", c.id, "total", len(h.clients))
}

// Broadcast pushes event to every client subscribed to runID.
func (h *Hub) Broadcast(runID string, event *Event) {
	h.broadcast <- &broadcastMsg{runID: runID, event: event}
}

func (h *Hub) broadcastEvent(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.byRunID[msg.runID]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.send <- msg.event:
		default:
			h.logger.Warn("wsfeed client buffer full, dropping message", "client_id", c.id, "event_type", msg.event.Type)
		}
	}
}

// Subscribe registers client c to receive events for runID.
func (h *Hub) Subscribe(c *Client, runID string) {
	if runID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()

	c.subs.runs[runID] = true
	if h.byRunID[runID] == nil {
		h.byRunID[runID] = make(map[*Client]bool)
	}
	h.byRunID[runID][c] = true
}

// Unsubscribe removes client c's subscription to runID.
func (h *Hub) Unsubscribe(c *Client, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.subs.mu.Lock()
	defer c.subs.mu.Unlock()

	delete(c.subs.runs, runID)
	if clients, ok := h.byRunID[runID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.byRunID, runID)
		}
	}
}

// ClientCount returns the number of currently connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
