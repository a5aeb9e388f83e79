package wsfeed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

// subscriptions tracks the set of run ids a client currently follows.
type subscriptions struct {
	runs map[string]bool
	mu   sync.RWMutex
}

func newSubscriptions() *subscriptions {
	return &subscriptions{runs: make(map[string]bool)}
}

// Canceler lets the hub ask the owning run manager to cancel a run on
// behalf of a connected client, without the wsfeed package depending
// on the orchestrator package.
type Canceler interface {
	Cancel(runID string) bool
}

// Client is one connected websocket session.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan *Event
	canceler Canceler

	id   string
	subs *subscriptions
}

// NewClient creates a Client bound to hub and conn. canceler may be nil
// if cancel commands should be rejected.
func NewClient(id string, hub *Hub, conn *websocket.Conn, canceler Canceler) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *Event, sendBufferSize),
		canceler: canceler,
		id:       id,
		subs:     newSubscriptions(),
	}
}

// ReadPump pumps client commands into the hub. Call in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendResponse(NewErrorResponse("error", "invalid command format"))
			continue
		}
		c.handleCommand(&cmd)
	}
}

// WritePump pumps hub events to the client connection, with periodic
// pings to keep the connection alive. Call in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleCommand(cmd *Command) {
	switch cmd.Action {
	case CmdSubscribe:
		c.handleSubscribe(cmd)
	case CmdUnsubscribe:
		c.handleUnsubscribe(cmd)
	case CmdCancel:
		c.handleCancel(cmd)
	default:
		c.sendResponse(NewErrorResponse("error", "unknown command: "+cmd.Action))
	}
}

func (c *Client) handleSubscribe(cmd *Command) {
	if cmd.RunID == "" {
		c.sendResponse(NewErrorResponse(CmdSubscribe, "run_id required"))
		return
	}
	c.hub.Subscribe(c, cmd.RunID)
	c.sendResponse(NewSuccessResponse(CmdSubscribe, "subscribed to run: "+cmd.RunID))
}

func (c *Client) handleUnsubscribe(cmd *Command) {
	if cmd.RunID == "" {
		c.sendResponse(NewErrorResponse(CmdUnsubscribe, "run_id required"))
		return
	}
	c.hub.Unsubscribe(c, cmd.RunID)
	c.sendResponse(NewSuccessResponse(CmdUnsubscribe, "unsubscribed from run: "+cmd.RunID))
}

func (c *Client) handleCancel(cmd *Command) {
	if cmd.RunID == "" {
		c.sendResponse(NewErrorResponse(CmdCancel, "run_id required"))
		return
	}
	if c.canceler == nil || !c.canceler.Cancel(cmd.RunID) {
		c.sendResponse(NewErrorResponse(CmdCancel, "run not active: "+cmd.RunID))
		return
	}
	c.sendResponse(NewSuccessResponse(CmdCancel, "cancel requested for run: "+cmd.RunID))
}

func (c *Client) sendResponse(resp *Response) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(resp)
}
