package services

import (
	"context"
	"fmt"
	"time"

	"kape-platform/internal/analytics"
	"kape-platform/internal/models"
	"kape-platform/internal/repository"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

// FarmService handles per-cluster advice and harvest planning
type FarmService struct {
	repo    repository.FarmRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFarmService creates a new farm service
func NewFarmService(repo repository.FarmRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FarmService {
	return &FarmService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ClusterReport is the recommendation view of one cluster
type ClusterReport struct {
	Cluster         models.Cluster             `json:"cluster"`
	LatestStage     *models.StageData          `json:"latest_stage,omitempty"`
	Recommendations []analytics.Recommendation `json:"recommendations"`
	Performance     analytics.Performance      `json:"performance"`
	Indices         analytics.ConditionIndices `json:"indices"`
}

// ClusterRecommendations evaluates the rule set against a cluster's latest
// stage snapshot. Findings are ordered high severity first.
func (s *FarmService) ClusterRecommendations(ctx context.Context, clusterID string) (*ClusterReport, error) {
	cluster, err := s.repo.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	ids := []string{cluster.ID}
	stages, err := s.repo.ListStageData(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage data: %w", err)
	}
	harvests, err := s.repo.ListHarvestRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load harvest records: %w", err)
	}

	latest := analytics.LatestStage(stages)
	recs := analytics.SortBySeverity(analytics.GenerateRecommendations(*cluster, latest))
	for _, rec := range recs {
		s.metrics.RecordRecommendation(rec.Factor, string(rec.Severity))
	}

	return &ClusterReport{
		Cluster:         *cluster,
		LatestStage:     latest,
		Recommendations: recs,
		Performance:     analytics.ClassifyPerformance(recs),
		Indices:         analytics.ComputeIndices(*cluster, latest, analytics.LatestHarvest(harvests)),
	}, nil
}

// HarvestEstimateRequest asks for a harvest date. With a cluster ID, readings
// left blank are taken from the cluster's latest snapshot and farm elevation.
type HarvestEstimateRequest struct {
	ClusterID        string   `json:"cluster_id,omitempty"`
	FloweringDate    string   `json:"flowering_date"`
	AvgTempC         *float64 `json:"avg_temp_c,omitempty"`
	ElevationM       *float64 `json:"elevation_m,omitempty"`
	ShadeTreePresent *bool    `json:"shade_tree_present,omitempty"`
}

// EstimateHarvest projects the harvest date for a flowering event
func (s *FarmService) EstimateHarvest(ctx context.Context, req HarvestEstimateRequest) (*analytics.HarvestEstimate, error) {
	flowering := models.ParseOptionalDate(req.FloweringDate)
	if flowering == nil {
		return nil, &models.ValidationError{
			Field:   "flowering_date",
			Value:   req.FloweringDate,
			Message: "expected a date such as 2024-03-15",
		}
	}

	conditions := analytics.HarvestConditions{
		AvgTempC:         req.AvgTempC,
		ElevationM:       req.ElevationM,
		ShadeTreePresent: req.ShadeTreePresent,
	}

	var history []models.StageData
	if req.ClusterID != "" {
		cluster, err := s.repo.GetCluster(ctx, req.ClusterID)
		if err != nil {
			return nil, err
		}
		history, err = s.repo.ListStageData(ctx, []string{cluster.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to load stage history: %w", err)
		}

		if latest := analytics.LatestStage(history); latest != nil {
			if conditions.AvgTempC == nil {
				conditions.AvgTempC = latest.AvgTempC
			}
			if conditions.ShadeTreePresent == nil {
				conditions.ShadeTreePresent = latest.ShadeTreePresent
			}
		}
		if conditions.ElevationM == nil {
			farm, err := s.repo.GetFarm(ctx, cluster.FarmID)
			if err != nil && !IsNotFound(err) {
				return nil, err
			}
			if farm != nil {
				conditions.ElevationM = farm.ElevationM
			}
		}
	}

	estimate := analytics.EstimateHarvest(*flowering, conditions, history)

	s.logger.Debug(ctx, "[HARVEST_ESTIMATE] Harvest date estimated", logging.Fields{
		"cluster_id":     req.ClusterID,
		"flowering_date": flowering.Format(time.DateOnly),
		"estimated_days": estimate.EstimatedDays,
		"history_used":   estimate.HistoryUsed,
	})
	return &estimate, nil
}
