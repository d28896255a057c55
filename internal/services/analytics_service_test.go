package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kape-platform/internal/analytics"
)

func TestAnalyticsService_Portfolio(t *testing.T) {
	deps := newTestDeps(t)
	repo := &fakeRepository{snap: hillsideSnapshot()}
	svc := NewAnalyticsService(repo, deps.cache, deps.logger, deps.metrics)

	p, err := svc.Portfolio(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, p.Stats.TotalFarmers)
	assert.Equal(t, 1, p.Stats.TotalFarms)
	assert.Equal(t, 2, p.Stats.TotalClusters)
	assert.Equal(t, 150, p.Stats.TotalTrees)
	assert.Equal(t, 370.0, p.Stats.TotalYieldKg)
	assert.Equal(t, 630.0, p.Stats.TotalPredictedYield)
	require.Len(t, p.EnrichedClusters, 2)
	require.Len(t, p.FarmSummaries, 1)
	assert.Equal(t, "Ana Reyes", p.FarmSummaries[0].FarmerName)

	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.ClustersNeedAttention))
	// recomputing analytics does not count as serving recommendations
	assert.Zero(t, testutil.ToFloat64(deps.metrics.RecommendationsFired.WithLabelValues("soil_ph", "high")))
}

func TestAnalyticsService_Attention(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewAnalyticsService(&fakeRepository{snap: hillsideSnapshot()}, deps.cache, deps.logger, deps.metrics)

	attention, err := svc.Attention(context.Background())
	require.NoError(t, err)
	require.Len(t, attention, 1)
	assert.Equal(t, "Alpha", attention[0].ClusterName)
	assert.Equal(t, analytics.RiskCritical, attention[0].Risk.Level)
	assert.Equal(t, 55.0, attention[0].YieldDecline)
}

func TestAnalyticsService_FarmForUser(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewAnalyticsService(&fakeRepository{snap: hillsideSnapshot()}, nil, deps.logger, deps.metrics)
	ctx := context.Background()

	farm, err := svc.FarmForUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "f-1", farm.FarmID)
	assert.Equal(t, []string{"2024 Dry"}, farm.Seasons)
	assert.Equal(t, 1, farm.Stats.TotalFarmers)

	_, err = svc.FarmForUser(ctx, "u-9")
	assert.True(t, IsNotFound(err), "an admin owns no farm")

	_, err = svc.Farm(ctx, "f-404")
	assert.True(t, IsNotFound(err))
}
