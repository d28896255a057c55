package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kape-platform/internal/cache"
	"kape-platform/internal/config"
	"kape-platform/internal/handlers"
	"kape-platform/internal/repository"
	"kape-platform/internal/services"
	"kape-platform/pkg/database"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("kape-api", version, logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting kape platform API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"cache":       cfg.Redis.Addr != "",
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("kape_platform")

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize analytics cache; the API still serves without it
	analyticsCache := cache.NewAnalyticsCache(cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}, logger, metricsCollector)
	defer analyticsCache.Close()

	if err := analyticsCache.Ping(ctx); err != nil {
		logger.Warn(ctx, "[STARTUP] Analytics cache unreachable, serving uncached", logging.Fields{
			"addr":  cfg.Redis.Addr,
			"error": err.Error(),
		})
	}

	// Initialize repository
	farmRepo := repository.NewFarmRepository(db, logger, metricsCollector)

	// Initialize services
	analyticsService := services.NewAnalyticsService(farmRepo, analyticsCache, logger, metricsCollector)
	farmService := services.NewFarmService(farmRepo, logger, metricsCollector)
	exportService := services.NewExportService(analyticsService, cfg.Export.DefaultFormat, cfg.Export.SheetName, logger, metricsCollector)

	// Initialize handlers
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, farmService, exportService, farmRepo, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()

	// Register routes
	analyticsHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
