package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/fidelitytrust/notification-service/internal/adapters/primary/http"
	mw "github.com/fidelitytrust/notification-service/internal/adapters/primary/http/middleware"
	"github.com/fidelitytrust/notification-service/internal/adapters/primary/websocket"
	"github.com/fidelitytrust/notification-service/internal/adapters/secondary/postgres"
	"github.com/fidelitytrust/notification-service/internal/auth"
	"github.com/fidelitytrust/notification-service/internal/config"
	"github.com/fidelitytrust/notification-service/internal/core/services"
	"github.com/fidelitytrust/notification-service/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply database configuration
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)

	registry := websocket.NewRegistry()
	hub := websocket.NewHub(registry, cfg.Notifications.SendTimeout, logger)
	go hub.Run()
	defer hub.Stop()

	// 5. Initialize Rate Limiters
	var generalRateLimiter, producerRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})

		producerRateLimiter = mw.NewRateLimiter(mw.ProducerRateLimiterConfig())
	}

	// 6. Dependency Injection (Wiring the Hexagon)

	// Error Handler
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Repositories (Secondary Adapters)
	notificationRepo := postgres.NewNotificationRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	// Services (Core)
	notificationService := services.NewNotificationService(notificationRepo, txManager, hub, logger)

	// Handlers (Primary Adapters)
	notificationHandler := httpAdapter.NewNotificationHandler(notificationService, errorHandler, logger)
	producerHandler := httpAdapter.NewProducerHandler(notificationService, cfg.Notifications.ProducerKeyHash, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, notificationService, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, registry, cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// Apply general rate limiting if enabled
	if generalRateLimiter != nil {
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket namespaces (authentication is handled inside the handler)
		r.Get("/ws/user-notifications", wsHandler.HandleUserNamespace)
		r.Get("/ws/admin-notifications", wsHandler.HandleAdminNamespace)

		// Internal producer routes, authenticated by API key
		r.Group(func(r chi.Router) {
			if producerRateLimiter != nil {
				r.Use(producerRateLimiter.Middleware)
			}
			r.Route("/internal", producerHandler.RegisterRoutes)
		})

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))

			r.Route("/notifications/user", notificationHandler.RegisterUserRoutes)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAdmin)
				r.Route("/notifications/admin", notificationHandler.RegisterAdminRoutes)
			})
		})
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
