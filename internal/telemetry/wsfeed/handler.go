package wsfeed

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming HTTP requests to websocket sessions
// feeding off hub, optionally wired to a Canceler so subscribers can
// request a run cancellation.
type Handler struct {
	hub      *Hub
	canceler Canceler
	logger   *slog.Logger
}

// NewHandler creates a Handler. logger may be nil.
func NewHandler(hub *Hub, canceler Canceler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Handler{hub: hub, canceler: canceler, logger: logger}
}

// ServeHTTP upgrades the request and registers a new session with the hub.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("wsfeed upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, h.hub, conn, h.canceler)

	h.logger.Info("wsfeed client connected", "client_id", clientID, "remote_addr", r.RemoteAddr)
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
