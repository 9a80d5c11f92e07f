// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"strings"

	"subgate-service/internal/config"
	"subgate-service/internal/db"
	"subgate-service/internal/domain/capability"
	authHandler "subgate-service/internal/handlers/auth"
	eventHandler "subgate-service/internal/handlers/event"
	noticeHandler "subgate-service/internal/handlers/notice"
	planHandler "subgate-service/internal/handlers/plan"
	subscriptionHandler "subgate-service/internal/handlers/subscription"
	userHandler "subgate-service/internal/handlers/user"
	wsHandler "subgate-service/internal/handlers/websocket"
	"subgate-service/internal/middleware"
	"subgate-service/internal/notifier"
	"subgate-service/internal/pkg/jwt"
	"subgate-service/internal/repository/postgres"
	authUsecase "subgate-service/internal/service/auth"
	entitlementUsecase "subgate-service/internal/service/entitlement"
	subscriptionUsecase "subgate-service/internal/service/subscription"
	"subgate-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- Migrations -----
	if err := postgres.Migrate(s.cfg.DBDSN); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("redis connected", zap.String("addr", s.cfg.RedisAddr))

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Repositories -----
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	eventRepo := postgres.NewPaymentEventRepository(pool)
	planRepo := postgres.NewPlanRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	identityRepo := postgres.NewServiceIdentityRepository(pool)

	// ----- Change feed -----
	bus := notifier.NewBus(logger)
	listener := notifier.NewListener(pool, bus, logger)
	go listener.Run(ctx)

	hub := websocket.NewHub(bus, logger)
	go hub.Run(ctx)

	// ----- Services -----
	authService := authUsecase.NewAuthService(identityRepo, jwtManager, logger)
	rateLimiter := authUsecase.NewRateLimiter(redisClient)
	subscriptionService := subscriptionUsecase.NewSubscriptionService(subscriptionRepo, planRepo, logger)
	entitlementService := entitlementUsecase.NewEntitlementService(subscriptionRepo, userRepo, redisClient, bus, logger)
	if err := entitlementService.Prewarm(ctx); err != nil {
		logger.Warn("entitlement cache prewarm failed", zap.Error(err))
	}
	go entitlementService.Run(ctx)

	// ----- Configured identity grants -----
	if err := authService.EnsureGrants(ctx, parseGrants(s.cfg.Grants, logger)); err != nil {
		return fmt.Errorf("failed to ensure identity grants: %w", err)
	}

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService, rateLimiter, logger)
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(subscriptionService)
	eventHandlerInst := eventHandler.NewEventHandler(eventRepo)
	noticeHandlerInst := noticeHandler.NewNoticeHandler(subscriptionRepo)
	planHandlerInst := planHandler.NewPlanHandler(planRepo)
	userHandlerInst := userHandler.NewUserHandler(userRepo, entitlementService)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:         authHandlerInst,
		SubscriptionHandler: subscriptionHandlerInst,
		EventHandler:        eventHandlerInst,
		NoticeHandler:       noticeHandlerInst,
		PlanHandler:         planHandlerInst,
		UserHandler:         userHandlerInst,
		WSHandler:           wsHandlerInst,
		AuthMiddleware:      authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// parseGrants turns "name:capability:secret" entries into grants,
// skipping malformed ones.
func parseGrants(raw []string, logger *zap.Logger) []authUsecase.Grant {
	grants := make([]authUsecase.Grant, 0, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			logger.Warn("skipping malformed grant entry")
			continue
		}
		grants = append(grants, authUsecase.Grant{
			Name:       parts[0],
			Capability: capability.Capability(parts[1]),
			Secret:     parts[2],
		})
	}
	return grants
}
