// internal/websocket/client.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"subgate-service/internal/domain/capability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	identityName string
	cap          capability.Capability
	logger       *zap.Logger

	// watches narrows the feed to specific users; empty means everything.
	watches  map[uuid.UUID]bool
	watchMu  sync.RWMutex
	watchAll bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		identityName: auth.IdentityName,
		cap:          auth.Capability,
		logger:       logger,
		watches:      make(map[uuid.UUID]bool),
		watchAll:     true,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Watch narrows the client's feed to the given users.
func (c *Client) Watch(userIDs []uuid.UUID) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, id := range userIDs {
		c.watches[id] = true
	}
	c.watchAll = len(c.watches) == 0
}

// Unwatch removes users from the filter; an empty filter means everything.
func (c *Client) Unwatch(userIDs []uuid.UUID) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for _, id := range userIDs {
		delete(c.watches, id)
	}
	c.watchAll = len(c.watches) == 0
}

// Watches reports whether the client should receive a change for the user.
func (c *Client) Watches(userID uuid.UUID) bool {
	c.watchMu.RLock()
	defer c.watchMu.RUnlock()
	return c.watchAll || c.watches[userID]
}

// ReadPump handles incoming messages from client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Warn("websocket read failed", zap.Error(err))
				}
				return
			}

			c.handleMessage(message)
		}
	}
}

// WritePump handles outgoing messages to client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// handleMessage processes incoming messages from client
func (c *Client) handleMessage(data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	switch msg.Type {
	case EventTypePing:
		c.SendMessage(NewMessage(EventTypePong, nil))

	case EventTypeWatch:
		ids, err := c.parseWatch(msg.Data)
		if err != nil {
			c.SendError("invalid_watch", "Invalid watch request", err.Error())
			return
		}
		c.Watch(ids)
		c.SendMessage(NewMessage(EventTypeWatch, map[string]interface{}{
			"status": "watching",
		}))

	case EventTypeUnwatch:
		ids, err := c.parseWatch(msg.Data)
		if err != nil {
			c.SendError("invalid_unwatch", "Invalid unwatch request", err.Error())
			return
		}
		c.Unwatch(ids)
		c.SendMessage(NewMessage(EventTypeUnwatch, map[string]interface{}{
			"status": "unwatched",
		}))
	}
}

func (c *Client) parseWatch(data interface{}) ([]uuid.UUID, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var req WatchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SendMessage sends a message to the client
func (c *Client) SendMessage(msg *WSMessage) {
	data, err := msg.ToJSON()
	if err != nil {
		c.logger.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		// Buffer full: the client stopped draining. Cancel it and let
		// the pumps unregister; blocking here would stall the caller,
		// which may be the hub itself.
		c.logger.Warn("websocket send buffer full, dropping client",
			zap.String("identity", c.identityName))
		c.Close()
	}
}

// SendError sends an error message to the client
func (c *Client) SendError(code, message, details string) {
	c.SendMessage(NewMessage(EventTypeError, ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close cancels the client. The pumps observe the canceled context,
// close the connection and the read pump unregisters from the hub. The
// send channel is never closed, so concurrent SendMessage calls stay
// safe.
func (c *Client) Close() {
	c.cancel()
}
