package services

import (
	"context"
	"fmt"
	"time"

	"kape-platform/internal/cache"
	"kape-platform/internal/models"
	"kape-platform/internal/repository"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

// IngestionService loads seed tables into the database
type IngestionService struct {
	repo    repository.FarmRepository
	cache   *cache.AnalyticsCache
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Entities          map[SeedEntity]*EntityCount
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.FarmRepository, analyticsCache *cache.AnalyticsCache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		cache:   analyticsCache,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every seed table found in dataDir. Users, farms and
// clusters are upserted row by row; stage data and harvests go in batches.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int, unit models.GradeUnit) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"grade_unit": string(unit),
		"stage":      "INITIALIZATION",
	})

	if batchSize <= 0 {
		return nil, &models.ValidationError{Field: "batch_size", Value: fmt.Sprint(batchSize), Message: "batch size must be positive"}
	}

	set, err := LoadSeedDir(dataDir, unit, startTime.UTC())
	if err != nil {
		return nil, err
	}

	result := &IngestionResult{
		TotalFiles: len(set.Counts),
		Entities:   set.Counts,
		Errors:     append([]string(nil), set.Errors...),
	}
	for entity, count := range set.Counts {
		result.TotalRecords += count.Rows
		result.FailedRecords += count.Failed
		if count.Failed > 0 {
			s.metrics.RecordIngestionRows(string(entity), false, count.Failed)
			s.metrics.RecordIngestionError("parse_error")
		}
	}

	snap := set.Snapshot

	for i := range snap.Users {
		s.upsert(ctx, result, SeedUsers, snap.Users[i].ID, s.repo.UpsertUser(ctx, &snap.Users[i]))
	}
	for i := range snap.Farms {
		s.upsert(ctx, result, SeedFarms, snap.Farms[i].ID, s.repo.UpsertFarm(ctx, &snap.Farms[i]))
	}
	for i := range snap.Clusters {
		s.upsert(ctx, result, SeedClusters, snap.Clusters[i].ID, s.repo.UpsertCluster(ctx, &snap.Clusters[i]))
	}

	stageRows := make([]*models.StageData, len(snap.StageData))
	for i := range snap.StageData {
		stageRows[i] = &snap.StageData[i]
	}
	s.insertBatches(ctx, result, SeedStageData, len(stageRows), batchSize, func(lo, hi int) error {
		return s.repo.CreateStageDataBatch(ctx, stageRows[lo:hi])
	})

	harvestRows := make([]*models.HarvestRecord, len(snap.Harvests))
	for i := range snap.Harvests {
		harvestRows[i] = &snap.Harvests[i]
	}
	s.insertBatches(ctx, result, SeedHarvests, len(harvestRows), batchSize, func(lo, hi int) error {
		return s.repo.CreateHarvestRecordsBatch(ctx, harvestRows[lo:hi])
	})

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn(ctx, "[INGEST_CACHE_ERROR] Failed to invalidate analytics cache", logging.Fields{
			"error": err.Error(),
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) upsert(ctx context.Context, result *IngestionResult, entity SeedEntity, id string, err error) {
	if err == nil {
		result.SuccessfulRecords++
		s.metrics.RecordIngestionRows(string(entity), true, 1)
		return
	}

	result.FailedRecords++
	result.Entities[entity].Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", entity, id, err))
	s.metrics.RecordIngestionRows(string(entity), false, 1)
	s.metrics.RecordIngestionError("db_error")
	s.logger.Error(ctx, "[INGEST_ROW_ERROR] Row could not be stored", logging.Fields{
		"entity": string(entity),
		"id":     id,
		"stage":  "PERSIST",
	}, err)
}

// insertBatches writes n rows in chunks of size. A failed chunk is rolled back
// and counted; later chunks still run.
func (s *IngestionService) insertBatches(ctx context.Context, result *IngestionResult, entity SeedEntity, n, size int, insert func(lo, hi int) error) {
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		count := hi - lo

		if err := insert(lo, hi); err != nil {
			result.FailedRecords += count
			result.Entities[entity].Failed += count
			result.Errors = append(result.Errors, fmt.Sprintf("%s rows %d-%d: %v", entity, lo+1, hi, err))
			s.metrics.RecordIngestionRows(string(entity), false, count)
			s.metrics.RecordIngestionError("batch_error")
			s.logger.Error(ctx, "[INGEST_BATCH_ERROR] Batch insert failed", logging.Fields{
				"entity":     string(entity),
				"batch_size": count,
				"stage":      "PERSIST",
			}, err)
			continue
		}

		result.SuccessfulRecords += count
		s.metrics.RecordIngestionRows(string(entity), true, count)
		s.logger.Debug(ctx, "[INGEST_BATCH] Batch stored", logging.Fields{
			"entity":     string(entity),
			"batch_size": count,
		})
	}
}
