package cache

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kape-platform/internal/analytics"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

func newTestCache(addr string) *AnalyticsCache {
	logger := logging.NewStructuredLogger("kape-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollectorWithRegistry("kape_test", prometheus.NewRegistry())
	return NewAnalyticsCache(Config{Addr: addr, TTL: time.Minute}, logger, collector)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "kape:analytics:portfolio", PortfolioKey())
	assert.Equal(t, "kape:analytics:farm:f-1", FarmKey("f-1"))
}

func TestAnalyticsCache_Disabled(t *testing.T) {
	c := newTestCache("")
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.NoError(t, c.Ping(ctx))

	c.SetPortfolio(ctx, &analytics.PortfolioAnalytics{})
	_, ok := c.GetPortfolio(ctx)
	assert.False(t, ok)

	_, ok = c.GetFarm(ctx, "f-1")
	assert.False(t, ok)

	assert.NoError(t, c.Invalidate(ctx))
	assert.NoError(t, c.Close())
}

// Requires a running Redis at REDIS_TEST_ADDR.
func TestAnalyticsCache_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis integration test: REDIS_TEST_ADDR not set")
	}

	c := newTestCache(addr)
	defer c.Close()
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	farm := &analytics.FarmAnalytics{
		FarmID:  "f-1",
		Stats:   analytics.Stats{TotalClusters: 2, TotalYieldKg: 720},
		Seasons: []string{"2023 Wet", "2024 Dry"},
	}
	c.SetFarm(ctx, "f-1", farm)

	got, ok := c.GetFarm(ctx, "f-1")
	require.True(t, ok)
	assert.Equal(t, farm.Stats, got.Stats)
	assert.Equal(t, farm.Seasons, got.Seasons)

	require.NoError(t, c.Invalidate(ctx))
	_, ok = c.GetFarm(ctx, "f-1")
	assert.False(t, ok)
}
