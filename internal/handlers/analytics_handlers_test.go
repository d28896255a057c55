package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kape-platform/internal/analytics"
	"kape-platform/internal/models"
	"kape-platform/internal/repository"
	"kape-platform/internal/services"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

type stubAnalytics struct {
	portfolio *analytics.PortfolioAnalytics
	farms     map[string]*analytics.FarmAnalytics
	owners    map[string]string
	attention []analytics.EnrichedCluster
	err       error
}

func (s *stubAnalytics) Portfolio(ctx context.Context) (*analytics.PortfolioAnalytics, error) {
	return s.portfolio, s.err
}

func (s *stubAnalytics) Farm(ctx context.Context, farmID string) (*analytics.FarmAnalytics, error) {
	if s.err != nil {
		return nil, s.err
	}
	farm, ok := s.farms[farmID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "farm", ID: farmID}
	}
	return farm, nil
}

func (s *stubAnalytics) FarmForUser(ctx context.Context, userID string) (*analytics.FarmAnalytics, error) {
	farmID, ok := s.owners[userID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "farm", ID: userID}
	}
	return s.Farm(ctx, farmID)
}

func (s *stubAnalytics) Attention(ctx context.Context) ([]analytics.EnrichedCluster, error) {
	return s.attention, s.err
}

type stubAdvisor struct {
	lastRequest services.HarvestEstimateRequest
}

func (s *stubAdvisor) ClusterRecommendations(ctx context.Context, clusterID string) (*services.ClusterReport, error) {
	if clusterID != "c-1" {
		return nil, &repository.NotFoundError{Resource: "cluster", ID: clusterID}
	}
	return &services.ClusterReport{
		Cluster:     models.Cluster{ID: "c-1", ClusterName: "Alpha"},
		Performance: analytics.PerformanceModerate,
	}, nil
}

func (s *stubAdvisor) EstimateHarvest(ctx context.Context, req services.HarvestEstimateRequest) (*analytics.HarvestEstimate, error) {
	s.lastRequest = req
	flowering, err := time.Parse(time.DateOnly, req.FloweringDate)
	if err != nil {
		return nil, &models.ValidationError{Field: "flowering_date", Value: req.FloweringDate, Message: "invalid date"}
	}
	return &analytics.HarvestEstimate{
		FloweringDate: flowering,
		BaseDays:      220,
		EstimatedDays: 220,
		EstimatedDate: flowering.AddDate(0, 0, 220),
	}, nil
}

type stubExporter struct{}

func (stubExporter) Export(ctx context.Context, req services.ExportRequest) (*services.ExportFile, error) {
	if req.Report != "kpi" {
		return nil, &models.ValidationError{Field: "report", Value: req.Report, Message: "unknown report"}
	}
	return &services.ExportFile{
		Filename:    "kpi_report_2024-06-01.csv",
		ContentType: "text/csv",
		Rows:        1,
		Body:        []byte("Farm Name\nHillside\n"),
	}, nil
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(ctx context.Context) error { return s.err }

type testServer struct {
	router   *mux.Router
	metrics  *metrics.Collector
	advisor  *stubAdvisor
	provider *stubAnalytics
}

func newTestServer(t *testing.T, health HealthChecker) *testServer {
	t.Helper()
	logger := logging.NewStructuredLogger("kape-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollectorWithRegistry("kape_test", prometheus.NewRegistry())

	provider := &stubAnalytics{
		portfolio: &analytics.PortfolioAnalytics{Stats: analytics.Stats{TotalFarms: 1, TotalYieldKg: 370}},
		farms: map[string]*analytics.FarmAnalytics{
			"f-1": {FarmID: "f-1", Seasons: []string{"2024 Dry"}},
		},
		owners: map[string]string{"u-1": "f-1"},
		attention: []analytics.EnrichedCluster{
			{Cluster: models.Cluster{ID: "c-1", ClusterName: "Alpha"}, FarmName: "Hillside"},
		},
	}
	advisor := &stubAdvisor{}

	h := NewAnalyticsHandler(provider, advisor, stubExporter{}, health, logger, collector)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return &testServer{router: router, metrics: collector, advisor: advisor, provider: provider}
}

func (s *testServer) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestAnalyticsHandler_GetPortfolio(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	rec := srv.do(http.MethodGet, "/api/admin/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var got analytics.PortfolioAnalytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Stats.TotalFarms)
	assert.Equal(t, 370.0, got.Stats.TotalYieldKg)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		srv.metrics.APIRequestsTotal.WithLabelValues("/api/admin/analytics", "GET", "200")))
}

func TestAnalyticsHandler_GetAttention(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	rec := srv.do(http.MethodGet, "/api/admin/attention", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got AttentionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, "Hillside", got.Data[0].FarmName)
}

func TestAnalyticsHandler_FarmAnalytics(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	rec := srv.do(http.MethodGet, "/api/farms/f-1/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got analytics.FarmAnalytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"2024 Dry"}, got.Seasons)

	rec = srv.do(http.MethodGet, "/api/farms/f-404/analytics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// both farm ids land on the route template series
	assert.Equal(t, 1.0, testutil.ToFloat64(
		srv.metrics.APIRequestsTotal.WithLabelValues("/api/farms/{farmID}/analytics", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		srv.metrics.APIErrorsTotal.WithLabelValues("not_found", "/api/farms/{farmID}/analytics")))
}

func TestAnalyticsHandler_UserAnalytics(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	rec := srv.do(http.MethodGet, "/api/users/u-1/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodGet, "/api/users/u-2/analytics", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Code)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), errResp.RequestID)
}

func TestAnalyticsHandler_InternalError(t *testing.T) {
	srv := newTestServer(t, stubHealth{})
	srv.provider.err = errors.New("connection reset")

	rec := srv.do(http.MethodGet, "/api/admin/analytics", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "internal error", errResp.Message, "store errors are not leaked")
}

func TestAnalyticsHandler_ClusterRecommendations(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	rec := srv.do(http.MethodGet, "/api/clusters/c-1/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report services.ClusterReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "Alpha", report.Cluster.ClusterName)

	rec = srv.do(http.MethodGet, "/api/clusters/c-9/recommendations", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsHandler_EstimateHarvest(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	body := `{"cluster_id":"c-1","flowering_date":"2024-03-01","avg_temp_c":24.5}`
	rec := srv.do(http.MethodPost, "/api/harvest-estimate", strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var got analytics.HarvestEstimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 220, got.EstimatedDays)
	assert.Equal(t, "2024-10-07", got.EstimatedDate.Format(time.DateOnly))
	require.NotNil(t, srv.advisor.lastRequest.AvgTempC)
	assert.Equal(t, 24.5, *srv.advisor.lastRequest.AvgTempC)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"flowering_date":`},
		{"unknown field", `{"flowering_date":"2024-03-01","altitude":5}`},
		{"bad date", `{"flowering_date":"03/01/2024"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/harvest-estimate", strings.NewReader(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec = srv.do(http.MethodGet, "/api/harvest-estimate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyticsHandler_ExportReport(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	rec := srv.do(http.MethodGet, "/api/export/kpi?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="kpi_report_2024-06-01.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Farm Name\nHillside\n", rec.Body.String())

	rec = srv.do(http.MethodGet, "/api/export/rainfall", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandler_HealthCheck(t *testing.T) {
	srv := newTestServer(t, stubHealth{})
	rec := srv.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status["status"])

	down := newTestServer(t, stubHealth{err: errors.New("dial tcp: refused")})
	rec = down.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status["status"])
}

func TestRequestID_ReusesHeader(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestDocs(t *testing.T) {
	srv := newTestServer(t, stubHealth{})

	rec := srv.do(http.MethodGet, "/api/docs/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var spec map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	paths := spec["paths"].(map[string]interface{})
	assert.Contains(t, paths, "/api/admin/analytics")
	assert.Contains(t, paths, "/api/export/{report}")

	rec = srv.do(http.MethodGet, "/api/docs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi.json")
	assert.Contains(t, rec.Body.String(), "Kape Platform API Documentation")
}
