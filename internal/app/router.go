// internal/app/router.go
package app

import (
	"subgate-service/internal/domain/capability"
	authHandler "subgate-service/internal/handlers/auth"
	eventHandler "subgate-service/internal/handlers/event"
	noticeHandler "subgate-service/internal/handlers/notice"
	planHandler "subgate-service/internal/handlers/plan"
	subscriptionHandler "subgate-service/internal/handlers/subscription"
	userHandler "subgate-service/internal/handlers/user"
	wsHandler "subgate-service/internal/handlers/websocket"
	"subgate-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler         *authHandler.AuthHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	EventHandler        *eventHandler.EventHandler
	NoticeHandler       *noticeHandler.NoticeHandler
	PlanHandler         *planHandler.PlanHandler
	UserHandler         *userHandler.UserHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Token Exchange ====================
	api.POST("/auth/token", h.AuthHandler.Token)

	// ==================== Change Feed ====================
	r.GET("/ws", h.AuthMiddleware.Auth(), h.WSHandler.HandleConnection)

	// ==================== Plans ====================
	plans := api.Group("/plans")
	plans.Use(h.AuthMiddleware.Auth())
	{
		plans.GET("", h.PlanHandler.List)
		plans.GET("/:code", h.PlanHandler.Get)
	}

	// ==================== Users ====================
	users := api.Group("/users")
	users.Use(h.AuthMiddleware.Auth())
	{
		users.POST("", h.AuthMiddleware.RequireCapability(capability.Creator, capability.AdminReader), h.UserHandler.Upsert)
		users.GET("/:id", h.UserHandler.Get)
		users.GET("/:id/entitlement", h.UserHandler.Entitlement)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth(), middleware.AuditMiddleware(logger))
	{
		// Inserts are the creator's domain
		subscriptions.POST("/pending",
			h.AuthMiddleware.RequireCapability(capability.Creator, capability.AdminReader),
			h.SubscriptionHandler.CreatePending)
		subscriptions.POST("/free",
			h.AuthMiddleware.RequireCapability(capability.Creator, capability.AdminReader),
			h.SubscriptionHandler.CreateFreeActive)
		subscriptions.POST("/:id/cancel",
			h.AuthMiddleware.RequireCapability(capability.Creator, capability.AdminReader),
			h.SubscriptionHandler.Cancel)

		// Lifecycle edges; the service enforces the per-capability table
		subscriptions.POST("/:id/transition", h.SubscriptionHandler.Transition)

		// Reads
		subscriptions.GET("", h.SubscriptionHandler.List)
		subscriptions.GET("/pending/by-amount", h.SubscriptionHandler.PendingByAmount)
		subscriptions.GET("/:id", h.SubscriptionHandler.Get)
	}

	// ==================== Payment Events ====================
	events := api.Group("/events")
	events.Use(h.AuthMiddleware.Auth(), middleware.AuditMiddleware(logger))
	{
		events.POST("",
			h.AuthMiddleware.RequireCapability(capability.Verifier, capability.AdminReader),
			h.EventHandler.Ingest)
		events.POST("/:id/match",
			h.AuthMiddleware.RequireCapability(capability.Verifier, capability.AdminReader),
			h.EventHandler.Match)
		events.GET("/by-external", h.EventHandler.GetByExternalID)
		events.GET("/:id", h.EventHandler.Get)
	}

	// ==================== One-Shot Notices ====================
	notices := api.Group("/notices")
	notices.Use(h.AuthMiddleware.Auth(), middleware.AuditMiddleware(logger))
	{
		notices.POST("/overdue/claim",
			h.AuthMiddleware.RequireCapability(capability.Verifier, capability.AdminReader),
			h.NoticeHandler.ClaimOverdue)
		notices.POST("/expired/claim",
			h.AuthMiddleware.RequireCapability(capability.Verifier, capability.AdminReader),
			h.NoticeHandler.ClaimExpired)
	}
}
