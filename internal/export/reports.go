package export

import (
	"kape-platform/internal/analytics"
)

// PredictionTrendRows lists predicted against actual yield per season
func PredictionTrendRows(trends []analytics.TrendPoint) []Row {
	rows := make([]Row, 0, len(trends))
	for _, t := range trends {
		rows = append(rows, Row{
			F("Season", t.Season),
			F("Predicted Yield (kg)", t.Predicted),
			F("Actual Yield (kg)", t.Actual),
			F("Fine (kg)", t.Fine),
			F("Premium (kg)", t.Premium),
			F("Commercial (kg)", t.Commercial),
		})
	}
	return rows
}

// YieldTrendRows lists a farm's harvested yield and grade split per season
func YieldTrendRows(trends []analytics.TrendPoint) []Row {
	rows := make([]Row, 0, len(trends))
	for _, t := range trends {
		rows = append(rows, Row{
			F("Season", t.Season),
			F("Total Yield (kg)", t.Actual),
			F("Fine (kg)", t.Fine),
			F("Premium (kg)", t.Premium),
			F("Commercial (kg)", t.Commercial),
			F("Harvests", t.HarvestCount),
		})
	}
	return rows
}

// FarmPredictionRows lists the yield totals of each farm
func FarmPredictionRows(summaries []analytics.FarmSummary) []Row {
	rows := make([]Row, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, Row{
			F("Farm", s.FarmName),
			F("Farmer", s.FarmerName),
			F("Predicted (kg)", s.PredictedYield),
			F("Actual (kg)", s.ActualYield),
			F("Previous (kg)", s.PreviousYield),
			F("Clusters", s.ClusterCount),
		})
	}
	return rows
}

// KPIRows lists the clusters needing attention with their latest readings
func KPIRows(clusters []analytics.EnrichedCluster) []Row {
	rows := make([]Row, 0, len(clusters))
	for _, c := range clusters {
		row := Row{
			F("Farm Name", c.FarmName),
			F("Farmer", c.FarmerName),
			F("Cluster", c.ClusterName),
			F("Risk Level", c.Risk.Level),
			F("Priority", c.Risk.Priority),
			F("Yield Decline (%)", c.YieldDecline),
			F("Predicted Yield (kg)", c.PredictedYield),
			F("Actual Yield (kg)", c.CurrentYield),
			F("Previous Yield (kg)", c.PreviousYield),
		}

		var season string
		if sd := c.LatestStage; sd != nil {
			row = append(row,
				F("Soil pH", sd.SoilPH),
				F("Bean Moisture (%)", sd.BeanMoisture),
				F("Defect Count", sd.DefectCount),
			)
			season = sd.Season
		} else {
			row = append(row, F("Soil pH", nil), F("Bean Moisture (%)", nil), F("Defect Count", nil))
		}
		if season == "" && c.LatestHarvest != nil {
			season = c.LatestHarvest.Season
		}
		rows = append(rows, append(row, F("Season", season)))
	}
	return rows
}

// RecommendationRows lists every fired rule, one row per cluster finding
func RecommendationRows(clusters []analytics.EnrichedCluster) []Row {
	var rows []Row
	for _, c := range clusters {
		for _, rec := range analytics.SortBySeverity(c.Recommendations) {
			rows = append(rows, Row{
				F("Farm", c.FarmName),
				F("Cluster", c.ClusterName),
				F("Factor", rec.Label),
				F("Severity", rec.Severity),
				F("Priority", rec.Priority),
				F("Current Value", rec.CurrentValue),
				F("Ideal", rec.Ideal),
				F("Issue", rec.Explanation),
				F("Recommendation", rec.Recommendation),
			})
		}
	}
	return rows
}
