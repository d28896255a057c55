package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kape-platform/internal/analytics"
	"kape-platform/internal/config"
	"kape-platform/internal/export"
	"kape-platform/internal/models"
	"kape-platform/internal/services"
	"kape-platform/pkg/logging"
)

const rule = "════════════════════════════════════════════════════════════════"

// report runs the analytics pipeline over a seed directory without a database
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	dataDir := flag.String("data-dir", cfg.Ingest.DataDir, "Directory containing seed tables (.csv or .xlsx)")
	gradeUnit := flag.String("grade-unit", cfg.Ingest.GradeUnit, "Default unit of harvest grade columns: kg or percent")
	exportReport := flag.String("export", "", "Write a report file: portfolio-trends, farm-predictions, kpi or recommendations")
	format := flag.String("format", cfg.Export.DefaultFormat, "Report file format: csv or xlsx")
	outDir := flag.String("out", ".", "Directory for the report file")
	flag.Parse()

	logger := logging.NewStructuredLogger("kape-report", "1.0.0", logging.WarnLevel)
	ctx := context.Background()
	now := time.Now()

	set, err := services.LoadSeedDir(*dataDir, models.ParseGradeUnit(*gradeUnit), now)
	if err != nil {
		logger.Fatal(ctx, "[REPORT_ERROR] Failed to load seed data", logging.Fields{"data_dir": *dataDir}, err)
	}
	for _, msg := range set.Errors {
		logger.Warn(ctx, "[REPORT_ROW_SKIPPED] "+msg, logging.Fields{})
	}

	portfolio := analytics.AggregatePortfolio(set.Snapshot)
	attention := analytics.NeedsAttention(portfolio.EnrichedClusters)

	fmt.Println(rule)
	fmt.Println("KAPE PLATFORM - PORTFOLIO REPORT")
	fmt.Println(rule)
	for _, entity := range services.SeedOrder {
		if count, ok := set.Counts[entity]; ok {
			fmt.Printf("  %-20s %6d rows  %4d skipped\n", entity, count.Rows, count.Failed)
		}
	}
	fmt.Println()

	s := portfolio.Stats
	fmt.Printf("Farmers:              %d\n", s.TotalFarmers)
	fmt.Printf("Farms:                %d\n", s.TotalFarms)
	fmt.Printf("Clusters:             %d\n", s.TotalClusters)
	fmt.Printf("Trees:                %d\n", s.TotalTrees)
	fmt.Printf("Harvests:             %d\n", s.TotalHarvests)
	fmt.Printf("Total yield:          %.2f kg\n", s.TotalYieldKg)
	fmt.Printf("Predicted yield:      %.2f kg\n", s.TotalPredictedYield)
	fmt.Printf("Previous yield:       %.2f kg\n", s.TotalPreviousYield)
	fmt.Println()

	fmt.Println(rule)
	fmt.Println("SEASONAL TRENDS")
	fmt.Println(rule)
	for _, p := range portfolio.YieldTrends {
		fmt.Printf("  %-16s actual %10.2f kg | predicted %10.2f kg | harvests %d\n",
			p.Season, p.Actual, p.Predicted, p.HarvestCount)
	}
	fmt.Println()

	fmt.Println(rule)
	fmt.Println("YIELD STATUS")
	fmt.Println(rule)
	for _, c := range portfolio.StatusCounts {
		fmt.Printf("  %-20s %d\n", c.Status, c.Count)
	}
	fmt.Println()

	fmt.Println(rule)
	fmt.Printf("CLUSTERS NEEDING ATTENTION (%d)\n", len(attention))
	fmt.Println(rule)
	for _, c := range attention {
		fmt.Printf("  [%s] %s / %s  decline %.1f%%  findings %d\n",
			c.Risk.Level, c.FarmName, c.ClusterName, c.YieldDecline, len(c.Recommendations))
	}
	fmt.Println()

	if *exportReport == "" {
		return
	}

	rows, subject, err := reportRows(*exportReport, portfolio, attention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	file, err := services.Render(rows, strings.ToLower(*format), cfg.Export.SheetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
		os.Exit(1)
	}

	path := filepath.Join(*outDir, export.Filename(subject, now, strings.ToLower(*format)))
	if err := os.WriteFile(path, file.Body, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d rows to %s\n", file.Rows, path)
}

func reportRows(report string, p analytics.PortfolioAnalytics, attention []analytics.EnrichedCluster) ([]export.Row, string, error) {
	switch report {
	case services.ReportPortfolioTrends:
		return export.PredictionTrendRows(p.YieldTrends), "prediction_overall", nil
	case services.ReportFarmPredictions:
		return export.FarmPredictionRows(p.FarmSummaries), "prediction_farms", nil
	case services.ReportKPI:
		return export.KPIRows(attention), "kpi_report", nil
	case services.ReportRecommendations:
		return export.RecommendationRows(p.EnrichedClusters), "recommendations", nil
	}
	return nil, "", fmt.Errorf("unknown report %q", report)
}
