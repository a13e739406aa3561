package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/data"
	"github.com/contest-radar/backend/internal/handler"
	"github.com/contest-radar/backend/internal/infrastructure"
	"github.com/contest-radar/backend/internal/middleware"
	"github.com/contest-radar/backend/internal/repository"
	"github.com/contest-radar/backend/internal/scheduler"
	"github.com/contest-radar/backend/internal/service"
	"github.com/contest-radar/backend/internal/source"
	"github.com/contest-radar/backend/internal/stats"
)

const metricsPath = "/metrics"

func main() {
	// Load configuration
	config := infrastructure.LoadConfig()

	// Initialize logger
	logger, err := infrastructure.NewLogger(config.Server.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.SyncLogger(logger)

	logger.Info("Starting Contest Radar API",
		zap.String("environment", config.Server.Environment),
		zap.Int("port", config.Server.Port),
	)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	telemetry, err := infrastructure.NewTelemetry(ctx, &config.Telemetry, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	// Create metrics
	metrics, err := telemetry.CreateMetrics()
	if err != nil {
		logger.Error("Failed to create metrics", zap.Error(err))
		os.Exit(1)
	}

	// Initialize database
	database, err := infrastructure.NewDatabase(ctx, &config.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(database.DB)

	// Seed development accounts
	if config.Server.Environment != "production" {
		seeder := data.NewSeeder(userRepo, logger)
		if err := seeder.SeedDevUsers(); err != nil {
			logger.Error("Failed to seed dev users", zap.Error(err))
			os.Exit(1)
		}
	}

	// Optional redis for the shared scheduler lock
	redisClient, err := infrastructure.NewRedisClient(ctx, &config.Redis, logger)
	if err != nil {
		logger.Error("Failed to connect to redis", zap.Error(err))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Contest pipeline
	sourceLogger := infrastructure.ComponentLogger(logger, "source")
	sources := []source.Source{
		source.NewCodeforces(config.Sources.CodeforcesURL, config.Sources.Timeout, sourceLogger),
		source.NewAtCoder(config.Sources.AtCoderURL, config.Sources.Timeout, sourceLogger),
		source.NewLeetCode(config.Sources.LeetCodeURL, config.Sources.Timeout, sourceLogger),
		source.NewCodeChef(config.Sources.CodeChefURL, config.Sources.Timeout, sourceLogger),
	}
	aggregator := service.NewAggregator(sources, config.Sources.Timeout, telemetry.Tracer, metrics,
		infrastructure.ComponentLogger(logger, "aggregator"))
	contestCache := service.NewContestCache(aggregator, config.Sources.CacheTTL, telemetry.Tracer, metrics,
		infrastructure.ComponentLogger(logger, "contest_cache"))

	// Stats
	statsLogger := infrastructure.ComponentLogger(logger, "stats")
	statsService := service.NewStatsService([]stats.Fetcher{
		stats.NewCodeforces(config.Stats.CodeforcesBaseURL, config.Stats.Timeout, statsLogger),
		stats.NewAtCoder(config.Stats.AtCoderBaseURL, config.Stats.Timeout, statsLogger),
		stats.NewLeetCode(config.Stats.LeetCodeGraphQLURL, config.Stats.Timeout, statsLogger),
		stats.NewCodeChef(config.Stats.CodeChefBaseURL, config.Stats.Timeout, statsLogger),
	}, telemetry.Tracer, statsLogger)

	// Initialize services
	userService := service.NewUserService(userRepo, &config.JWT, telemetry.Tracer, logger)

	// Reminder scheduler
	reminders := scheduler.New(
		contestCache,
		userRepo,
		newChannelRegistry(&config.Notify, infrastructure.ComponentLogger(logger, "notify")),
		newLocker(redisClient, config.Scheduler.LockTTL),
		config.Scheduler.Interval,
		telemetry.Tracer,
		metrics,
		infrastructure.ComponentLogger(logger, "scheduler"),
	)
	if config.Scheduler.Enabled {
		reminders.Start(ctx)
	} else {
		logger.Info("Reminder scheduler disabled")
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService)
	contestHandler := handler.NewContestHandler(contestCache)
	statsHandler := handler.NewStatsHandler(statsService, userService)
	healthHandler := handler.NewHealthHandler(database, config.Telemetry.ServiceVersion)

	// Setup Gin router
	if config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware(middleware.NewCORSConfig(config.Server.AllowedOrigins)))
	router.Use(middleware.TracingMiddleware(telemetry.Tracer))
	router.Use(middleware.MetricsMiddleware(metrics, metricsPath))

	// Health check endpoint
	router.GET("/health", healthHandler.Health)

	// Metrics endpoint for Prometheus
	router.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Contest listing (public)
		api.GET("/contests", contestHandler.GetContests)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(userService))
		{
			users := protected.Group("/users")
			{
				users.GET("/me", userHandler.GetCurrentUser)
				users.PUT("/me/preferences", userHandler.UpdatePreferences)
				users.GET("/me/notifications", userHandler.GetNotifications)
				users.GET("/me/stats", statsHandler.GetMyStats)
			}

			protected.GET("/stats", statsHandler.GetStats)
		}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting",
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Let an in-flight reminder tick finish before the HTTP server goes away
	reminders.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
