package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kape-platform/internal/models"
)

func newTestExportService(t *testing.T) (*ExportService, testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	analyticsSvc := NewAnalyticsService(&fakeRepository{snap: hillsideSnapshot()}, deps.cache, deps.logger, deps.metrics)
	svc := NewExportService(analyticsSvc, FormatCSV, "Report", deps.logger, deps.metrics)
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC) }
	return svc, deps
}

func TestExportService_KPIReport(t *testing.T) {
	svc, deps := newTestExportService(t)

	file, err := svc.Export(context.Background(), ExportRequest{Report: ReportKPI})
	require.NoError(t, err)

	assert.Equal(t, "kpi_report_2024-06-30.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 1, file.Rows)

	lines := strings.Split(string(file.Body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Farm Name,Farmer,Cluster,Risk Level,Priority,Yield Decline (%),Predicted Yield (kg),"+
		"Actual Yield (kg),Previous Yield (kg),Soil pH,Bean Moisture (%),Defect Count,Season", lines[0])
	assert.Equal(t, "Hillside,Ana Reyes,Alpha,Critical,4,55,420,180,400,4.5,,,2024 Dry", lines[1])

	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.ExportsTotal.WithLabelValues(ReportKPI, FormatCSV)))
}

func TestExportService_Reports(t *testing.T) {
	svc, _ := newTestExportService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		req      ExportRequest
		filename string
		header   string
	}{
		{
			name:     "portfolio trends",
			req:      ExportRequest{Report: ReportPortfolioTrends},
			filename: "prediction_overall_2024-06-30.csv",
			header:   "Season,Predicted Yield (kg),Actual Yield (kg),Fine (kg),Premium (kg),Commercial (kg)",
		},
		{
			name:     "farm predictions",
			req:      ExportRequest{Report: ReportFarmPredictions},
			filename: "prediction_farms_2024-06-30.csv",
			header:   "Farm,Farmer,Predicted (kg),Actual (kg),Previous (kg),Clusters",
		},
		{
			name:     "farm trends",
			req:      ExportRequest{Report: ReportFarmTrends, FarmID: "f-1"},
			filename: "hillside_analytics_2024-06-30.csv",
			header:   "Season,Total Yield (kg),Fine (kg),Premium (kg),Commercial (kg),Harvests",
		},
		{
			name:     "recommendations",
			req:      ExportRequest{Report: ReportRecommendations},
			filename: "recommendations_2024-06-30.csv",
			header:   "Farm,Cluster,Factor,Severity,Priority,Current Value,Ideal,Issue,Recommendation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := svc.Export(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.filename, file.Filename)
			header, _, _ := strings.Cut(string(file.Body), "\n")
			assert.Equal(t, tt.header, header)
		})
	}
}

func TestExportService_Workbook(t *testing.T) {
	svc, _ := newTestExportService(t)

	file, err := svc.Export(context.Background(), ExportRequest{Report: ReportFarmPredictions, Format: "XLSX"})
	require.NoError(t, err)
	assert.Equal(t, "prediction_farms_2024-06-30.xlsx", file.Filename)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Body))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Hillside", "Ana Reyes", "630", "370", "600", "2"}, rows[1])
}

func TestExportService_InvalidRequests(t *testing.T) {
	svc, _ := newTestExportService(t)
	ctx := context.Background()

	for _, req := range []ExportRequest{
		{Report: "weekly"},
		{Report: ReportKPI, Format: "pdf"},
		{Report: ReportFarmTrends},
	} {
		_, err := svc.Export(ctx, req)
		var verr *models.ValidationError
		assert.True(t, errors.As(err, &verr), "%+v", req)
	}

	_, err := svc.Export(ctx, ExportRequest{Report: ReportFarmTrends, FarmID: "f-404"})
	assert.True(t, IsNotFound(err))
}
