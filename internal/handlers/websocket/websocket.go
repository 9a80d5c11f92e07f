// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"

	"subgate-service/internal/middleware"
	"subgate-service/internal/pkg/response"
	ws "subgate-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Machine-to-machine feed, callers authenticate by token
		return true
	},
}

type WebSocketHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// HandleConnection upgrades an authenticated caller onto the change feed.
// Runs behind the auth middleware, which accepts the token from the query
// string for websocket clients.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	cap, ok := middleware.GetCapability(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	name, _ := middleware.GetIdentityName(c)
	identityID, _ := middleware.GetIdentityID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, &ws.ClientAuth{
		IdentityName: name,
		Capability:   cap,
	}, h.logger)

	h.hub.Register <- client
	h.logger.Info("websocket connection established",
		zap.Int64("identity_id", identityID),
		zap.String("identity", name),
		zap.Int("clients", h.hub.TotalClients()),
	)

	go client.WritePump()
	go client.ReadPump()
}
