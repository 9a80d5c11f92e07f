// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"subgate-service/internal/domain/capability"
	"subgate-service/internal/notifier"

	"go.uber.org/zap"
)

// Hub relays the subscription change feed to connected websocket clients.
// It consumes the in-process notifier bus, so every fact it forwards
// corresponds to a committed storage mutation, in commit order.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	bus    *notifier.Bus
	logger *zap.Logger
}

func NewHub(bus *notifier.Bus, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		bus:        bus,
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	changes, cancel := h.bus.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case change, ok := <-changes:
			if !ok {
				h.shutdown()
				return
			}
			h.broadcastChange(change)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("change feed client connected",
		zap.String("identity", client.identityName),
		zap.Int("total", total))

	client.SendMessage(NewMessage(EventTypeConnected, map[string]interface{}{
		"identity":   client.identityName,
		"capability": client.cap,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client]; exists {
		delete(h.clients, client)
		client.Close()

		h.logger.Info("change feed client disconnected",
			zap.String("identity", client.identityName),
			zap.Int("total", len(h.clients)))
	}
}

func (h *Hub) broadcastChange(change notifier.Change) {
	msg := NewMessage(EventTypeChange, map[string]interface{}{
		"user_id": change.UserID.String(),
	})

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.Watches(change.UserID) {
			client.SendMessage(msg)
		}
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]bool)
}

// ClientAuth holds the authenticated identity a connection acts as.
type ClientAuth struct {
	IdentityName string
	Capability   capability.Capability
}
