package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkreusch/magento-cd-edition/internal/application"
	"github.com/mkreusch/magento-cd-edition/internal/application/services"
	"github.com/mkreusch/magento-cd-edition/internal/config"
	"github.com/mkreusch/magento-cd-edition/internal/infrastructure/crypto"
	"github.com/mkreusch/magento-cd-edition/internal/infrastructure/gateway"
	"github.com/mkreusch/magento-cd-edition/internal/infrastructure/mail"
	"github.com/mkreusch/magento-cd-edition/internal/infrastructure/persistence/postgres"
	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest/handlers"
	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payment service",
		"port", cfg.Server.Port,
		"sandbox", cfg.Gateway.Sandbox,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	encryptor, err := crypto.NewAESEncryptor(cfg.Gateway.Secret)
	if err != nil {
		logger.Error("failed to initialize account encryption", "error", err)
		os.Exit(1)
	}

	orderRepo := postgres.NewOrderRepository(db.Pool)
	txnStore := postgres.NewTransactionStore(db.Pool)
	tokenStore := postgres.NewTokenStore(db.Pool, encryptor)
	coordinator := postgres.NewCoordinator(db)

	gatewayClient := gateway.NewClient(cfg.Gateway, logger)
	retryGatewayClient := gateway.NewRetryClient(gatewayClient, cfg.Retry)

	builder := services.NewRequestBuilder(cfg)
	mailer := mail.NewLogMailer(logger)
	hooks := &application.Hooks{}

	reconcileService := services.NewReconcileService(coordinator, cfg, mailer, hooks, logger)
	notificationService := services.NewNotificationService(reconcileService, tokenStore, builder, logger)
	checkoutService := services.NewCheckoutService(orderRepo, tokenStore, retryGatewayClient, builder, cfg, logger)
	backofficeService := services.NewBackofficeService(coordinator, retryGatewayClient, builder, cfg, logger)

	h := handlers.NewHandlers(
		checkoutService,
		notificationService,
		backofficeService,
		txnStore,
		cfg,
		logger,
	)

	deduper, err := middleware.NewPushDeduper(cfg.Redis)
	if err != nil {
		logger.Warn("push dedup store unavailable, using in-memory fallback", "error", err)
	}

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.Handle("POST /payment/push", middleware.Dedup(deduper, logger)(http.HandlerFunc(h.Push)))

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
