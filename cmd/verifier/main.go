package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"subgate-service/internal/config"
	"subgate-service/internal/db"
	"subgate-service/internal/repository/postgres"
	"subgate-service/internal/service/verifier"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.ConnectDB(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	eventRepo := postgres.NewPaymentEventRepository(pool)

	var sources []verifier.MessageSource
	if cfg.VkToken != "" && cfg.VkPeerID != 0 {
		sources = append(sources, verifier.NewVkMessageSource(cfg.VkToken, cfg.VkPeerID))
	} else {
		logger.Warn("no VK credentials configured, polling sweeps only")
	}

	svc := verifier.NewVerifierService(
		subscriptionRepo,
		eventRepo,
		sources,
		verifier.NewVkTransferMatcher(),
		verifier.Config{
			PollInterval: cfg.PollInterval,
			OverdueAfter: cfg.OverdueAfter,
			FetchLimit:   cfg.VerifierFetchLim,
		},
		logger,
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down verifier...")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("verifier stopped", zap.Error(err))
	}
	logger.Info("verifier stopped")
}
