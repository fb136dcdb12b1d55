package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lingopulse/realtime-gateway/auth"
	"lingopulse/realtime-gateway/config"
	"lingopulse/realtime-gateway/db"
	"lingopulse/realtime-gateway/handlers"
	"lingopulse/realtime-gateway/middleware"
	"lingopulse/realtime-gateway/services"
	"lingopulse/realtime-gateway/store"
	"lingopulse/realtime-gateway/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := utils.NewLogger(cfg.Environment)

	// Optional policy bootstrap from the platform database
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(cfg)
		if err != nil {
			logger.Warn("policy database unavailable, using built-in tiers", "error", err)
		} else if policies, err := db.LoadRolePolicies(database, cfg.Policies); err != nil {
			logger.Warn("failed to load role policies, using built-in tiers", "error", err)
		} else {
			cfg.Policies = policies
		}
	}

	// Connect to Redis
	redisClient, err := store.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("failed to connect to Redis", "error", err)
	}
	defer redisClient.Close()
	kv := store.NewRedisStore(redisClient)

	// Initialize services
	authenticator := auth.NewAuthenticator(cfg.GatewayJWTSecret)
	limiter := services.NewRateLimiter(kv, cfg.Policies, cfg.RateLimitFailOpen, logger)
	presence := services.NewPresenceTracker(kv, cfg.PresenceTTL, logger)
	broadcaster := services.NewStatusBroadcaster(logger)
	gateway := handlers.NewGateway(authenticator, presence, limiter, broadcaster, cfg.TokenHeader, cfg.StoreTimeout, logger)

	// Initialize handlers
	presenceHandler := handlers.NewPresenceHandler(presence, cfg.StoreTimeout, logger)
	accountHandler := handlers.NewAccountHandler(limiter, cfg.StoreTimeout)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck(kv, cfg.StoreTimeout))

	// WebSocket endpoint: authentication happens inside the handshake
	// and failures downgrade to anonymous instead of rejecting.
	router.GET("/ws", gateway.HandleWS)

	// Presence endpoints
	router.POST("/presence/heartbeat", middleware.Auth(authenticator), presenceHandler.Heartbeat)
	router.GET("/presence/status", presenceHandler.GetStatus)
	router.GET("/presence/online", presenceHandler.GetOnlineUsers)

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(authenticator))
	v1.Use(middleware.RateLimit(limiter, authenticator, cfg.StoreTimeout, logger))
	{
		v1.GET("/me", accountHandler.Me)
		v1.GET("/limits", accountHandler.Limits)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting realtime gateway", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
