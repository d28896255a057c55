package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"kape-platform/internal/cache"
	"kape-platform/internal/config"
	"kape-platform/internal/models"
	"kape-platform/internal/repository"
	"kape-platform/internal/services"
	"kape-platform/pkg/database"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Parse command-line flags; configuration supplies the defaults
	dataDir := flag.String("data-dir", cfg.Ingest.DataDir, "Directory containing seed tables (.csv or .xlsx)")
	batchSize := flag.Int("batch-size", cfg.Ingest.BatchSize, "Number of stage or harvest rows per transaction")
	gradeUnit := flag.String("grade-unit", cfg.Ingest.GradeUnit, "Default unit of harvest grade columns: kg or percent")
	flag.Parse()

	// Initialize logger
	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("kape-ingester", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting seed data ingestion", logging.Fields{
		"version":    "1.0.0",
		"data_dir":   *dataDir,
		"batch_size": *batchSize,
		"grade_unit": *gradeUnit,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("kape_ingester")

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Cached analytics are dropped once the new rows land
	analyticsCache := cache.NewAnalyticsCache(cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}, logger, metricsCollector)
	defer analyticsCache.Close()

	// Initialize repository and service
	farmRepo := repository.NewFarmRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(farmRepo, analyticsCache, logger, metricsCollector)

	// Ingest data
	result, err := ingestionService.IngestDirectory(ctx, *dataDir, *batchSize, models.ParseGradeUnit(*gradeUnit))
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Failed Records:     %d\n", result.FailedRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	fmt.Println()
	for _, entity := range services.SeedOrder {
		count, ok := result.Entities[entity]
		if !ok {
			continue
		}
		fmt.Printf("  %-20s %6d rows  %4d failed  (%s)\n", entity, count.Rows, count.Failed, count.File)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
