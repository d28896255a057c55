package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"kape-platform/internal/analytics"
	"kape-platform/internal/export"
	"kape-platform/internal/models"
	"kape-platform/pkg/logging"
	"kape-platform/pkg/metrics"
)

// Report names accepted by Export
const (
	ReportPortfolioTrends = "portfolio-trends"
	ReportFarmTrends      = "farm-trends"
	ReportKPI             = "kpi"
	ReportFarmPredictions = "farm-predictions"
	ReportRecommendations = "recommendations"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var contentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ExportRequest selects a report. FarmID is required for farm-trends and
// narrows the recommendations report to one farm.
type ExportRequest struct {
	Report string
	Format string
	FarmID string
}

// ExportFile is a rendered report ready for download
type ExportFile struct {
	Filename    string
	ContentType string
	Rows        int
	Body        []byte
}

// ExportService renders analytics reports as downloadable files
type ExportService struct {
	analytics     *AnalyticsService
	defaultFormat string
	sheetName     string
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
	now           func() time.Time
}

// NewExportService creates a new export service
func NewExportService(analyticsService *AnalyticsService, defaultFormat, sheetName string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ExportService {
	return &ExportService{
		analytics:     analyticsService,
		defaultFormat: defaultFormat,
		sheetName:     sheetName,
		logger:        logger,
		metrics:       metricsCollector,
		now:           time.Now,
	}
}

// Export builds the requested report
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = s.defaultFormat
	}
	if _, ok := contentTypes[format]; !ok {
		return nil, &models.ValidationError{Field: "format", Value: req.Format, Message: "format must be csv or xlsx"}
	}

	rows, subject, err := s.reportRows(ctx, req)
	if err != nil {
		return nil, err
	}

	file, err := Render(rows, format, s.sheetName)
	if err != nil {
		return nil, err
	}
	file.Filename = export.Filename(subject, s.now(), format)

	s.metrics.RecordExport(req.Report, format)
	s.logger.Info(ctx, "[EXPORT] Report rendered", logging.Fields{
		"report":   req.Report,
		"format":   format,
		"farm_id":  req.FarmID,
		"rows":     file.Rows,
		"filename": file.Filename,
	})
	return file, nil
}

func (s *ExportService) reportRows(ctx context.Context, req ExportRequest) ([]export.Row, string, error) {
	switch req.Report {
	case ReportPortfolioTrends:
		p, err := s.analytics.Portfolio(ctx)
		if err != nil {
			return nil, "", err
		}
		return export.PredictionTrendRows(p.YieldTrends), "prediction_overall", nil

	case ReportFarmPredictions:
		p, err := s.analytics.Portfolio(ctx)
		if err != nil {
			return nil, "", err
		}
		return export.FarmPredictionRows(p.FarmSummaries), "prediction_farms", nil

	case ReportKPI:
		attention, err := s.analytics.Attention(ctx)
		if err != nil {
			return nil, "", err
		}
		return export.KPIRows(attention), "kpi_report", nil

	case ReportFarmTrends:
		if req.FarmID == "" {
			return nil, "", &models.ValidationError{Field: "farm_id", Message: "farm_id is required for farm-trends"}
		}
		f, err := s.analytics.Farm(ctx, req.FarmID)
		if err != nil {
			return nil, "", err
		}
		return export.YieldTrendRows(f.YieldTrends), farmSubject(f.EnrichedClusters) + "_analytics", nil

	case ReportRecommendations:
		if req.FarmID != "" {
			f, err := s.analytics.Farm(ctx, req.FarmID)
			if err != nil {
				return nil, "", err
			}
			return export.RecommendationRows(f.EnrichedClusters), farmSubject(f.EnrichedClusters) + "_recommendations", nil
		}
		p, err := s.analytics.Portfolio(ctx)
		if err != nil {
			return nil, "", err
		}
		return export.RecommendationRows(p.EnrichedClusters), "recommendations", nil
	}

	return nil, "", &models.ValidationError{Field: "report", Value: req.Report, Message: "unknown report"}
}

// Render encodes rows in the given format
func Render(rows []export.Row, format, sheet string) (*ExportFile, error) {
	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		buf.WriteString(export.ToDelimitedText(rows))
	case FormatXLSX:
		if err := export.WriteWorkbook(&buf, sheet, rows); err != nil {
			return nil, fmt.Errorf("failed to render workbook: %w", err)
		}
	default:
		return nil, &models.ValidationError{Field: "format", Value: format, Message: "format must be csv or xlsx"}
	}
	return &ExportFile{
		ContentType: contentTypes[format],
		Rows:        len(rows),
		Body:        buf.Bytes(),
	}, nil
}

// farmSubject turns the farm name into a filename stem
func farmSubject(clusters []analytics.EnrichedCluster) string {
	name := "farm"
	for _, c := range clusters {
		if c.FarmName != "" {
			name = c.FarmName
			break
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
