package services

import (
	"context"
	"errors"
	"fmt"

	"kape-platform/internal/analytics"
	"kape-platform/internal/cache"
	"kape-platform/internal/repository"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

// AnalyticsService loads snapshots and runs the aggregation engine over them
type AnalyticsService struct {
	repo    repository.FarmRepository
	cache   *cache.AnalyticsCache
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAnalyticsService creates a new analytics service. A nil cache disables caching.
func NewAnalyticsService(repo repository.FarmRepository, analyticsCache *cache.AnalyticsCache, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalyticsService {
	return &AnalyticsService{
		repo:    repo,
		cache:   analyticsCache,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Portfolio returns analytics across every farm
func (s *AnalyticsService) Portfolio(ctx context.Context) (*analytics.PortfolioAnalytics, error) {
	if cached, ok := s.cache.GetPortfolio(ctx); ok {
		return cached, nil
	}

	snapshot, err := s.repo.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio snapshot: %w", err)
	}

	timer := s.metrics.NewTimer(s.metrics.AnalyticsDuration.WithLabelValues("portfolio"))
	result := analytics.AggregatePortfolio(snapshot)
	duration := timer.ObserveDuration()

	s.metrics.ClustersNeedAttention.Set(float64(len(analytics.NeedsAttention(result.EnrichedClusters))))

	s.logger.Info(ctx, "[ANALYTICS_PORTFOLIO] Portfolio analytics computed", logging.Fields{
		"farms":       result.Stats.TotalFarms,
		"clusters":    result.Stats.TotalClusters,
		"harvests":    result.Stats.TotalHarvests,
		"duration_ms": duration.Milliseconds(),
	})

	s.cache.SetPortfolio(ctx, &result)
	return &result, nil
}

// Farm returns analytics for a single farm
func (s *AnalyticsService) Farm(ctx context.Context, farmID string) (*analytics.FarmAnalytics, error) {
	if cached, ok := s.cache.GetFarm(ctx, farmID); ok {
		return cached, nil
	}

	snapshot, err := s.repo.LoadFarmSnapshot(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("failed to load farm snapshot: %w", err)
	}

	timer := s.metrics.NewTimer(s.metrics.AnalyticsDuration.WithLabelValues("farm"))
	result := analytics.AggregateFarm(farmID, snapshot)
	duration := timer.ObserveDuration()

	s.logger.Debug(ctx, "[ANALYTICS_FARM] Farm analytics computed", logging.Fields{
		"farm_id":     farmID,
		"clusters":    result.Stats.TotalClusters,
		"duration_ms": duration.Milliseconds(),
	})

	s.cache.SetFarm(ctx, farmID, &result)
	return &result, nil
}

// FarmForUser returns analytics for the farm owned by a farmer
func (s *AnalyticsService) FarmForUser(ctx context.Context, userID string) (*analytics.FarmAnalytics, error) {
	farm, err := s.repo.GetFarmByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Farm(ctx, farm.ID)
}

// Attention returns the portfolio clusters whose risk priority is 3 or more
func (s *AnalyticsService) Attention(ctx context.Context) ([]analytics.EnrichedCluster, error) {
	portfolio, err := s.Portfolio(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.NeedsAttention(portfolio.EnrichedClusters), nil
}

// IsNotFound reports whether err wraps a missing resource
func IsNotFound(err error) bool {
	var nf *repository.NotFoundError
	return errors.As(err, &nf)
}
